package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWater(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name     string
		expected Number
		used     Number
		points   float64
		ok       bool
	}{
		{"exact", Num(2), Num(2), waterMatchPoints, true},
		{"within tolerance", Num(2), Num(2.15), waterMatchPoints, true},
		{"within double tolerance", Num(2), Num(1.7), waterMatchPoints / 2, true},
		{"beyond", Num(2), Num(3), waterMismatchPenalty, true},
		{"zero is a value", Num(0), Num(0), waterMatchPoints, true},
		{"missing used", Num(2), Number{}, 0, false},
		{"missing expected", Number{}, Num(2), 0, false},
		{"invalid", Num(2), Number{state: stateInvalid}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, reason, ok := checkWater(tt.expected, tt.used, cfg)
			assert.Equal(t, tt.points, points)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Contains(t, reason, "BAC water")
			}
		})
	}
}

func TestCheckConcentration(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name     string
		expected Number
		used     Number
		points   float64
		ok       bool
	}{
		{"exact", Num(2500), Num(2500), concMatchPoints, true},
		{"minor", Num(2500), Num(2550), concMatchPoints, true},
		{"ok", Num(2500), Num(2650), concMatchPoints / 2, true},
		{"beyond", Num(2500), Num(3000), concMismatchPenalty, true},
		{"zero expected", Num(0), Num(10), concMismatchPenalty, true},
		{"both zero", Num(0), Num(0), concMatchPoints, true},
		{"missing", Number{}, Num(10), 0, false},
		{"invalid", Number{state: stateInvalid}, Num(10), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, reason, ok := checkConcentration(tt.expected, tt.used, cfg)
			assert.Equal(t, tt.points, points)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Contains(t, reason, "concentration")
			}
		})
	}
}

func TestEvalReconstitution_NotScored(t *testing.T) {
	for _, r := range []*Reconstitution{nil, {}, {WaterMLExpected: Num(2)}} {
		e := evalReconstitution(&Payload{Reconstitution: r}, DefaultConfig())
		assert.Equal(t, []float64{0, 0}, e.contributions)
		require.Len(t, e.reasons, 1)
		assert.Contains(t, e.reasons[0], "not scored")
	}
}

func withReconstitution(r *Reconstitution) *Payload {
	p := bestCasePayload()
	p.Reconstitution = r
	return p
}

func TestCompute_ReconstitutionAggregation(t *testing.T) {
	cfg := DefaultConfig()
	const (
		waterOK   = 2.0
		waterBad  = 3.0
		waterNear = 2.3
		concOK    = 2500.0
		concBad   = 4000.0
	)

	tests := []struct {
		name string
		r    *Reconstitution
		want float64
	}{
		{"missing", nil, 80},
		{"both match", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterOK), ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concOK)}, 100},
		{"water only", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterOK)}, 90},
		{"near water and conc", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterNear), ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concOK)}, 95},
		{"water fails", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterBad)}, 70},
		{"conc fails", &Reconstitution{ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concBad)}, 65},
		{"both fail", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterBad), ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concBad)}, 55},
		{"water fails conc matches", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterBad), ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concOK)}, 70},
		{"water matches conc fails", &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(waterOK), ConcentrationExpected: Num(2500), ConcentrationUsed: Num(concBad)}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(withReconstitution(tt.r), cfg)
			assert.InDelta(t, tt.want, res.Score, 0.001)
		})
	}
}

func TestCompute_ReconstitutionPenaltiesStack(t *testing.T) {
	cfg := DefaultConfig()
	water := &Reconstitution{WaterMLExpected: Num(2), WaterMLUsed: Num(3)}
	conc := &Reconstitution{ConcentrationExpected: Num(2500), ConcentrationUsed: Num(4000)}
	both := &Reconstitution{
		WaterMLExpected: Num(2), WaterMLUsed: Num(3),
		ConcentrationExpected: Num(2500), ConcentrationUsed: Num(4000),
	}

	waterScore := Compute(withReconstitution(water), cfg).Score
	concScore := Compute(withReconstitution(conc), cfg).Score
	bothScore := Compute(withReconstitution(both), cfg).Score

	assert.Less(t, bothScore, waterScore)
	assert.Less(t, bothScore, concScore)

	res := Compute(withReconstitution(both), cfg)
	assert.Equal(t, waterMismatchPenalty+concMismatchPenalty, res.Debug[ComponentReconstitution])
}

func TestCompute_ReconstitutionInvalidIsNeutral(t *testing.T) {
	p := &Payload{}
	require.NoError(t, jsonInto(`{"reconstitution": {"bac_ml_expected": "two", "bac_ml_used": 2, "concentration_expected": 100, "concentration_used": "100"}}`, p))

	res := Compute(p, DefaultConfig())
	assert.Contains(t, res.Reasons, "Reconstitution: BAC check not scored (invalid numbers).")
	assert.Contains(t, res.Reasons, "Reconstitution: concentration aligns with your expected mix.")
	assert.Equal(t, concMatchPoints, res.Debug[ComponentReconstitution])
}
