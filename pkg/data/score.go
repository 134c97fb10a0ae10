package data

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/pkg/errors"
)

const (
	// ScoreListLimitDefault caps ListScores when no limit is given.
	ScoreListLimitDefault = 50

	timeFormat = "2006-01-02T15:04:05.000000Z"

	insertScoreSQL = `INSERT INTO score_entry
		(id, subject, created_at, score, band, reasons, debug, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectScoreSQL = `SELECT id, subject, created_at, score, band, reasons, debug, payload
		FROM score_entry
		WHERE id = ?
	`

	selectScoresSQL = `SELECT id, subject, created_at, score, band, reasons, debug, payload
		FROM score_entry
		WHERE band = COALESCE(?, band)
		  AND subject = COALESCE(?, subject)
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	selectBandSummarySQL = `SELECT band, COUNT(*)
		FROM score_entry
		GROUP BY band
	`
)

// ErrNotFound is returned when a score entry does not exist.
var ErrNotFound = errors.New("score entry not found")

// ScoreEntry is a scored injection observation kept in the injection log.
type ScoreEntry struct {
	ID        string             `json:"id" yaml:"id"`
	Subject   string             `json:"subject,omitempty" yaml:"subject,omitempty"`
	CreatedAt time.Time          `json:"created_at" yaml:"createdAt"`
	Score     float64            `json:"score" yaml:"score"`
	Band      confidence.Band    `json:"band" yaml:"band"`
	Reasons   []string           `json:"reasons" yaml:"reasons"`
	Debug     map[string]float64 `json:"debug,omitempty" yaml:"debug,omitempty"`
	Payload   json.RawMessage    `json:"payload,omitempty" yaml:"-"`
}

// ScoreListQuery filters ListScores. Empty fields do not filter.
type ScoreListQuery struct {
	Band    string `json:"band,omitempty"`
	Subject string `json:"subject,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// NewScoreEntry builds a log entry for a scored payload.
func NewScoreEntry(subject string, p *confidence.Payload, r *confidence.Result) (*ScoreEntry, error) {
	if r == nil {
		return nil, errors.New("result required")
	}
	if p == nil {
		p = &confidence.Payload{}
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	return &ScoreEntry{
		ID:        uuid.NewString(),
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
		Score:     r.Score,
		Band:      r.Band,
		Reasons:   r.Reasons,
		Debug:     r.Debug,
		Payload:   b,
	}, nil
}

// SaveScore inserts e into the injection log. A missing ID or timestamp is
// filled in.
func SaveScore(db *sql.DB, e *ScoreEntry) error {
	if db == nil {
		return errDBNotInitialized
	}
	if e == nil {
		return errors.New("score entry required")
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage("{}")
	}

	reasons, err := json.Marshal(e.Reasons)
	if err != nil {
		return errors.Wrap(err, "failed to marshal reasons")
	}
	debug, err := json.Marshal(e.Debug)
	if err != nil {
		return errors.Wrap(err, "failed to marshal debug")
	}

	stmt, err := db.Prepare(rebind(db, insertScoreSQL))
	if err != nil {
		return errors.Wrap(err, "failed to prepare score insert statement")
	}
	defer stmt.Close()

	if _, err = stmt.Exec(e.ID, e.Subject, e.CreatedAt.UTC().Format(timeFormat),
		e.Score, string(e.Band), string(reasons), string(debug), string(e.Payload)); err != nil {
		return errors.Wrapf(err, "failed to insert score entry: %s", e.ID)
	}
	return nil
}

// GetScore returns a single entry by ID or ErrNotFound.
func GetScore(db *sql.DB, id string) (*ScoreEntry, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if id == "" {
		return nil, errors.New("id required")
	}

	row := db.QueryRow(rebind(db, selectScoreSQL), id)
	e, err := scanScore(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get score entry: %s", id)
	}
	return e, nil
}

// ListScores returns the newest entries matching q.
func ListScores(db *sql.DB, q ScoreListQuery) ([]*ScoreEntry, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if q.Limit <= 0 {
		q.Limit = ScoreListLimitDefault
	}

	rows, err := db.Query(rebind(db, selectScoresSQL), optional(q.Band), optional(q.Subject), q.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute score select statement")
	}
	defer rows.Close()

	list := make([]*ScoreEntry, 0)
	for rows.Next() {
		e, err := scanScore(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan score entry")
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate score entries")
	}
	return list, nil
}

// GetBandSummary returns the number of logged entries per band.
func GetBandSummary(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectBandSummarySQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute band summary statement")
	}
	defer rows.Close()

	summary := map[string]int64{
		string(confidence.BandHigh):   0,
		string(confidence.BandMedium): 0,
		string(confidence.BandLow):    0,
	}
	for rows.Next() {
		var band string
		var count int64
		if err := rows.Scan(&band, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan band summary")
		}
		summary[band] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate band summary")
	}
	return summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(s scanner) (*ScoreEntry, error) {
	var (
		e                       ScoreEntry
		createdAt, band         string
		reasons, debug, payload string
	)
	if err := s.Scan(&e.ID, &e.Subject, &createdAt, &e.Score, &band, &reasons, &debug, &payload); err != nil {
		return nil, err
	}

	var err error
	if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, errors.Wrapf(err, "invalid created_at: %s", createdAt)
	}
	e.Band = confidence.Band(band)
	if err := json.Unmarshal([]byte(reasons), &e.Reasons); err != nil {
		return nil, errors.Wrap(err, "invalid reasons")
	}
	if err := json.Unmarshal([]byte(debug), &e.Debug); err != nil {
		return nil, errors.Wrap(err, "invalid debug")
	}
	e.Payload = json.RawMessage(payload)
	return &e, nil
}
