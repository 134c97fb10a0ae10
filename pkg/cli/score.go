package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/mchmarny/dosecheck/pkg/data"
	"github.com/mchmarny/dosecheck/pkg/net"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

var (
	fileFlag = &urfave.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Payload file in JSON or YAML, - for stdin",
		Value:   "-",
	}

	saveFlag = &urfave.BoolFlag{
		Name:  "save",
		Usage: "Record the scored payload in the injection log",
	}

	subjectFlag = &urfave.StringFlag{
		Name:  "subject",
		Usage: "Free text label stored with the log entry (e.g. peptide or vial)",
	}

	remoteFlag = &urfave.StringFlag{
		Name:    "server",
		Usage:   "Score on a running dosecheck API at this base URL instead of locally",
		Sources: urfave.EnvVars("DOSECHECK_SERVER"),
	}

	tokenFlag = &urfave.StringFlag{
		Name:    "token",
		Usage:   "Bearer token for --server (optional, defaults to the stored token)",
		Sources: urfave.EnvVars("DOSECHECK_TOKEN"),
	}

	scoreCmd = &urfave.Command{
		Name:  "score",
		Usage: "Score a single injection payload",
		UsageText: `dosecheck score --file injection.json
   cat injection.yaml | dosecheck score --format yaml
   dosecheck score -f injection.json --save --subject bpc-157
   dosecheck score -f injection.json --server http://127.0.0.1:8080`,
		Action: cmdScore,
		Flags: []urfave.Flag{
			fileFlag,
			saveFlag,
			subjectFlag,
			remoteFlag,
			tokenFlag,
		},
	}
)

// scoreResponse is the scoring result, plus the log entry ID when saved.
type scoreResponse struct {
	ID                string `json:"id,omitempty" yaml:"id,omitempty"`
	confidence.Result `yaml:",inline"`
}

func cmdScore(ctx context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)

	b, err := readInput(cmd, cmd.String(fileFlag.Name))
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	p, err := decodeInput(b)
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	if base := cmd.String(remoteFlag.Name); base != "" {
		out, err := scoreRemote(ctx, app, base, cmd.String(tokenFlag.Name), &scoreRequestBody{
			Payload: p,
			Save:    cmd.Bool(saveFlag.Name),
			Subject: cmd.String(subjectFlag.Name),
		})
		if err != nil {
			return err
		}
		return output(cmd, out)
	}

	res := app.Scorer.Score(p)
	out := &scoreResponse{Result: *res}

	if cmd.Bool(saveFlag.Name) {
		id, err := saveResult(app, cmd.String(subjectFlag.Name), p, res)
		if err != nil {
			return err
		}
		out.ID = id
	}

	return output(cmd, out)
}

func saveResult(app *appConfig, subject string, p *confidence.Payload, res *confidence.Result) (string, error) {
	db, err := app.DB()
	if err != nil {
		return "", err
	}
	e, err := data.NewScoreEntry(subject, p, res)
	if err != nil {
		return "", fmt.Errorf("creating log entry: %w", err)
	}
	if err := data.SaveScore(db, e); err != nil {
		return "", fmt.Errorf("saving log entry: %w", err)
	}
	slog.Debug("score saved", "id", e.ID, "score", e.Score)
	return e.ID, nil
}

// scoreRequestBody is the request envelope as sent by the remote client.
type scoreRequestBody struct {
	Payload *confidence.Payload `json:"payload"`
	Save    bool                `json:"save,omitempty"`
	Subject string              `json:"subject,omitempty"`
}

func scoreRemote(ctx context.Context, app *appConfig, base, token string, body *scoreRequestBody) (*scoreResponse, error) {
	if token == "" {
		var err error
		if token, err = getAPIToken(app.Dir); err != nil {
			return nil, fmt.Errorf("reading api token: %w", err)
		}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(base, "/") + scorePath
	var out scoreResponse
	if err := net.PostJSON(ctx, url, token, b, &out); err != nil {
		return nil, fmt.Errorf("scoring on %s: %w", base, err)
	}
	slog.Debug("scored remotely", "url", url, "score", out.Score)
	return &out, nil
}

// decodeInput parses a JSON payload, or a YAML one by way of its JSON form.
func decodeInput(b []byte) (*confidence.Payload, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errEmptyInput
	}
	if b[0] == '{' {
		return confidence.DecodePayload(b)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting yaml: %w", err)
	}
	return confidence.DecodePayload(j)
}
