package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/mchmarny/dosecheck/pkg/config"
	"github.com/mchmarny/dosecheck/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bestCaseJSON = `{
	"dose_mcg": 250,
	"protocol_dose_mcg": 250,
	"has_active_protocol": true,
	"syringe": {"camera_used": true, "snap_success": true, "low_contrast": false},
	"reconstitution": {
		"bac_ml_expected": 2,
		"bac_ml_used": 2,
		"concentration_expected": 2500,
		"concentration_used": 2500
	},
	"timing": {
		"expected_interval_hours": 24,
		"last_injection_at_iso": "2024-05-01T08:00:00Z",
		"injection_at_iso": "2024-05-02T08:00:00Z"
	}
}`

func newTestApp(t *testing.T) *appConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	scorer, err := confidence.NewScorer(cfg.Confidence)
	require.NoError(t, err)

	app := &appConfig{
		Dir:    dir,
		DSN:    filepath.Join(dir, data.DataFileName),
		Format: formatJSON,
		Config: cfg,
		Scorer: scorer,
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestEncode(t *testing.T) {
	v := map[string]int{"high": 2}

	var j bytes.Buffer
	require.NoError(t, encode(&j, formatJSON, v))
	assert.JSONEq(t, `{"high": 2}`, j.String())

	var y bytes.Buffer
	require.NoError(t, encode(&y, formatYAML, v))
	assert.Equal(t, "high: 2\n", y.String())
}

func TestApp_ScoreSaveAndHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.Save(dir, config.Default()))
	cfgPath := filepath.Join(dir, config.FileName)
	dbPath := filepath.Join(dir, "test.db")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.Reader = strings.NewReader(bestCaseJSON)
	require.NoError(t, app.Run(t.Context(), []string{appName,
		"--config", cfgPath, "--db", dbPath, "--format", formatJSON,
		"score", "--save", "--subject", "bpc-157"}))

	var res scoreResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.NotEmpty(t, res.ID)
	assert.InDelta(t, 100, res.Score, 0.001)
	assert.Equal(t, confidence.BandHigh, res.Band)

	out.Reset()
	app = newApp()
	app.Writer = &out
	require.NoError(t, app.Run(t.Context(), []string{appName,
		"--config", cfgPath, "--db", dbPath, "--format", formatJSON,
		"history", "--subject", "bpc-157"}))

	var list []*data.ScoreEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, res.ID, list[0].ID)
	assert.Equal(t, "bpc-157", list[0].Subject)
}

func TestApp_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Confidence.BandHigh = 10
	require.NoError(t, config.Save(dir, cfg))

	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run(t.Context(), []string{appName,
		"--config", filepath.Join(dir, config.FileName), "config", "show"})
	assert.Error(t, err)
}
