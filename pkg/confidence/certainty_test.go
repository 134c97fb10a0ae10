package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalCertainty(t *testing.T) {
	tests := []struct {
		name      string
		certainty *Certainty
		bonus     float64
		reasons   int
	}{
		{"absent", nil, 0, 0},
		{"no flags", &Certainty{}, 0, 0},
		{"false flags", &Certainty{ManualDoseEdit: Bool(false), WarningOverridden: Bool(false), AIConfirmed: Bool(false)}, 0, 0},
		{"manual edit", &Certainty{ManualDoseEdit: Bool(true)}, manualEditPenalty, 1},
		{"warning overridden", &Certainty{WarningOverridden: Bool(true)}, warningOverridePenalty, 1},
		{"ai confirmed", &Certainty{AIConfirmed: Bool(true)}, aiConfirmedBonus, 1},
		{"all", &Certainty{ManualDoseEdit: Bool(true), WarningOverridden: Bool(true), AIConfirmed: Bool(true)}, -10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := evalCertainty(&Payload{Certainty: tt.certainty}, DefaultConfig())
			assert.Equal(t, tt.bonus, e.bonus)
			assert.Empty(t, e.contributions)
			assert.Len(t, e.reasons, tt.reasons)
		})
	}
}

func TestCompute_CertaintyIsAdditive(t *testing.T) {
	cfg := DefaultConfig()
	base := Compute(&Payload{}, cfg).Score
	res := Compute(&Payload{Certainty: &Certainty{AIConfirmed: Bool(true), ManualDoseEdit: Bool(true)}}, cfg)
	assert.InDelta(t, base, res.Score, 0.001)
	assert.Len(t, res.Reasons, 6)

	res = Compute(&Payload{Certainty: &Certainty{AIConfirmed: Bool(true)}}, cfg)
	assert.InDelta(t, base+aiConfirmedBonus, res.Score, 0.001)
}
