package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	urfave "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const maxLineBytes = 1 << 20

var (
	batchFileFlag = &urfave.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "JSONL file with one payload per line, - for stdin",
		Value:   "-",
	}

	concurrencyFlag = &urfave.IntFlag{
		Name:  "concurrency",
		Usage: "Number of payloads scored in parallel (optional, defaults to the config value)",
	}

	batchCmd = &urfave.Command{
		Name:  "batch",
		Usage: "Score a JSONL file of injection payloads",
		UsageText: `dosecheck batch --file injections.jsonl
   dosecheck batch -f injections.jsonl --concurrency 8 --save`,
		Action: cmdBatch,
		Flags: []urfave.Flag{
			batchFileFlag,
			concurrencyFlag,
			saveFlag,
			subjectFlag,
		},
	}
)

// BatchItem is the outcome for one input line. Lines that are not payloads
// carry an error instead of a result.
type BatchItem struct {
	Line   int                `json:"line" yaml:"line"`
	ID     string             `json:"id,omitempty" yaml:"id,omitempty"`
	Result *confidence.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`

	payload *confidence.Payload
}

// BatchSummary wraps the per-line results of a batch run.
type BatchSummary struct {
	Scored int            `json:"scored" yaml:"scored"`
	Failed int            `json:"failed" yaml:"failed"`
	Bands  map[string]int `json:"bands" yaml:"bands"`
	Items  []*BatchItem   `json:"items" yaml:"items"`
}

func cmdBatch(ctx context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)

	b, err := readInput(cmd, cmd.String(batchFileFlag.Name))
	if err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}

	limit := cmd.Int(concurrencyFlag.Name)
	if limit <= 0 {
		limit = app.Config.Batch.Concurrency
	}

	items, err := scoreBatch(ctx, app.Scorer, b, limit)
	if err != nil {
		return err
	}

	if cmd.Bool(saveFlag.Name) {
		subject := cmd.String(subjectFlag.Name)
		for _, it := range items {
			if it.Result == nil {
				continue
			}
			if it.ID, err = saveResult(app, subject, it.payload, it.Result); err != nil {
				return fmt.Errorf("line %d: %w", it.Line, err)
			}
		}
	}

	return output(cmd, summarize(items))
}

// scoreBatch scores every non-blank line of b with at most limit payloads in
// flight. Items are returned in input order.
func scoreBatch(ctx context.Context, s *confidence.Scorer, b []byte, limit int) ([]*BatchItem, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	items := make([]*BatchItem, 0)
	lines := make([][]byte, 0)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		items = append(items, &BatchItem{Line: n})
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning batch: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it := items[i]
			p, err := confidence.DecodePayload(lines[i])
			if err != nil {
				it.Error = err.Error()
				return nil
			}
			it.payload = p
			it.Result = s.Score(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring batch: %w", err)
	}

	slog.Debug("batch scored", "items", len(items), "concurrency", limit)
	return items, nil
}

func summarize(items []*BatchItem) *BatchSummary {
	sum := &BatchSummary{
		Bands: map[string]int{},
		Items: items,
	}
	for _, it := range items {
		if it.Result == nil {
			sum.Failed++
			continue
		}
		sum.Scored++
		sum.Bands[string(it.Result.Band)]++
	}
	return sum
}
