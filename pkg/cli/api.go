package cli

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/mchmarny/dosecheck/pkg/data"
)

const (
	historyLimitMax = 1000
	bearerPrefix    = "Bearer "
)

// scoreRequest is the optional envelope around a payload. A body without a
// payload key is the payload itself.
type scoreRequest struct {
	Payload json.RawMessage `json:"payload"`
	Config  json.RawMessage `json:"config,omitempty"`
	Save    confidence.Flag `json:"save"`
	Subject confidence.Text `json:"subject"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="dosecheck"`)
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func scoreAPIHandler(app *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, app.Config.Server.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "error reading request body")
			return
		}

		req, err := parseScoreRequest(b)
		if err != nil {
			slog.Debug("invalid score request", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		scorer := app.Scorer
		if len(req.Config) > 0 && !bytes.Equal(req.Config, []byte("null")) {
			if scorer, err = overrideScorer(app.Scorer, req.Config); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		p, err := confidence.DecodePayload(req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res := scorer.Score(p)
		out := &scoreResponse{Result: *res}

		if req.Save.True() {
			if out.ID, err = saveResult(app, string(req.Subject), p, res); err != nil {
				slog.Error("failed to save score", "error", err)
				writeError(w, http.StatusInternalServerError, "error saving score")
				return
			}
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func parseScoreRequest(b []byte) (*scoreRequest, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil || doc == nil {
		return nil, errors.New("request body must be a JSON object")
	}

	if _, ok := doc["payload"]; !ok {
		return &scoreRequest{Payload: b}, nil
	}

	var req scoreRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, errors.New("invalid request envelope")
	}
	return &req, nil
}

// overrideScorer merges the partial config in raw onto the base scorer's
// config and returns a scorer for it.
func overrideScorer(base *confidence.Scorer, raw json.RawMessage) (*confidence.Scorer, error) {
	cfg := base.Config()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.New("invalid config override")
	}
	return confidence.NewScorer(cfg)
}

func historyAPIHandler(app *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := data.ScoreListQuery{
			Band:    r.URL.Query().Get("band"),
			Subject: r.URL.Query().Get("subject"),
			Limit:   queryParamInt(r, "limit", data.ScoreListLimitDefault),
		}
		if q.Band != "" && !validBand(q.Band) {
			writeError(w, http.StatusBadRequest, "invalid band")
			return
		}

		db, err := app.DB()
		if err != nil {
			slog.Error("failed to open database", "error", err)
			writeError(w, http.StatusInternalServerError, "error opening database")
			return
		}

		list, err := data.ListScores(db, q)
		if err != nil {
			slog.Error("failed to list scores", "error", err)
			writeError(w, http.StatusInternalServerError, "error querying history")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func historyEntryAPIHandler(app *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, err := app.DB()
		if err != nil {
			slog.Error("failed to open database", "error", err)
			writeError(w, http.StatusInternalServerError, "error opening database")
			return
		}

		e, err := data.GetScore(db, r.PathValue("id"))
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, http.StatusNotFound, "entry not found")
				return
			}
			slog.Error("failed to get score", "error", err)
			writeError(w, http.StatusInternalServerError, "error querying history")
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func historySummaryAPIHandler(app *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		db, err := app.DB()
		if err != nil {
			slog.Error("failed to open database", "error", err)
			writeError(w, http.StatusInternalServerError, "error opening database")
			return
		}

		sum, err := data.GetBandSummary(db)
		if err != nil {
			slog.Error("failed to get band summary", "error", err)
			writeError(w, http.StatusInternalServerError, "error querying summary")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func configAPIHandler(app *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, app.Scorer.Config())
	}
}

func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Debug("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 1 || i > historyLimitMax {
		return def
	}

	return i
}
