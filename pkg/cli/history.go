package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/mchmarny/dosecheck/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	limitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of entries to list",
		Value: data.ScoreListLimitDefault,
	}

	bandFlag = &urfave.StringFlag{
		Name:  "band",
		Usage: "Only list entries in this band [high, medium, low]",
		Validator: func(v string) error {
			if v == "" || validBand(v) {
				return nil
			}
			return fmt.Errorf("invalid band: %s", v)
		},
	}

	historyCmd = &urfave.Command{
		Name:  "history",
		Usage: "List scored injections from the log",
		UsageText: `dosecheck history --limit 10
   dosecheck history --band low --subject bpc-157
   dosecheck history summary`,
		Action: cmdHistory,
		Flags: []urfave.Flag{
			limitFlag,
			bandFlag,
			subjectFlag,
		},
		Commands: []*urfave.Command{
			{
				Name:   "summary",
				Usage:  "Count logged entries per band",
				Action: cmdHistorySummary,
			},
			{
				Name:      "get",
				Usage:     "Show a single log entry",
				ArgsUsage: "<id>",
				Action:    cmdHistoryGet,
			},
		},
	}
)

func validBand(v string) bool {
	switch confidence.Band(v) {
	case confidence.BandHigh, confidence.BandMedium, confidence.BandLow:
		return true
	default:
		return false
	}
}

func cmdHistory(_ context.Context, cmd *urfave.Command) error {
	db, err := getConfig(cmd).DB()
	if err != nil {
		return err
	}

	list, err := data.ListScores(db, data.ScoreListQuery{
		Band:    cmd.String(bandFlag.Name),
		Subject: cmd.String(subjectFlag.Name),
		Limit:   cmd.Int(limitFlag.Name),
	})
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	return output(cmd, list)
}

func cmdHistorySummary(_ context.Context, cmd *urfave.Command) error {
	db, err := getConfig(cmd).DB()
	if err != nil {
		return err
	}

	sum, err := data.GetBandSummary(db)
	if err != nil {
		return fmt.Errorf("summarizing history: %w", err)
	}
	return output(cmd, sum)
}

func cmdHistoryGet(_ context.Context, cmd *urfave.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("entry id required")
	}

	db, err := getConfig(cmd).DB()
	if err != nil {
		return err
	}

	e, err := data.GetScore(db, id)
	if err != nil {
		return fmt.Errorf("getting entry %s: %w", id, err)
	}
	return output(cmd, e)
}
