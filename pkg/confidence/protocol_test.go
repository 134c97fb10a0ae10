package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalProtocol(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name    string
		payload *Payload
		points  float64
		reason  string
	}{
		{"exact", &Payload{DoseMCG: Num(250), ProtocolDoseMCG: Num(250)}, 30, "aligns closely"},
		{"within exact", &Payload{DoseMCG: Num(254), ProtocolDoseMCG: Num(250)}, 30, "aligns closely"},
		{"good", &Payload{DoseMCG: Num(262), ProtocolDoseMCG: Num(250)}, 25, "within the protocol tolerance"},
		{"good below", &Payload{DoseMCG: Num(240), ProtocolDoseMCG: Num(250)}, 25, "within the protocol tolerance"},
		{"ok", &Payload{DoseMCG: Num(270), ProtocolDoseMCG: Num(250)}, 15, "slightly outside"},
		{"off", &Payload{DoseMCG: Num(300), ProtocolDoseMCG: Num(250)}, protocolPenalty, "appears off"},
		{"active protocol", &Payload{DoseMCG: Num(250), ProtocolDoseMCG: Num(250), HasActiveProtocol: Bool(true)}, 30, "aligns closely"},
		{"no active protocol", &Payload{DoseMCG: Num(250), ProtocolDoseMCG: Num(250), HasActiveProtocol: Bool(false)}, 0, "no active protocol"},
		{"missing dose", &Payload{ProtocolDoseMCG: Num(250)}, 0, "missing protocol or dose"},
		{"missing protocol", &Payload{DoseMCG: Num(250)}, 0, "missing protocol or dose"},
		{"zero protocol", &Payload{DoseMCG: Num(250), ProtocolDoseMCG: Num(0)}, 0, "missing protocol or dose"},
		{"zero dose", &Payload{DoseMCG: Num(0), ProtocolDoseMCG: Num(250)}, 0, "missing protocol or dose"},
		{"invalid dose", &Payload{DoseMCG: Number{state: stateInvalid}, ProtocolDoseMCG: Num(250)}, 0, "invalid numbers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := evalProtocol(tt.payload, cfg)
			assert.InDelta(t, tt.points, e.raw(), 0.0001)
			assert.Len(t, e.reasons, 1)
			assert.Contains(t, e.reasons[0], tt.reason)
		})
	}
}

func TestEvalProtocol_ScalesWithWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtocolWeight = 60

	e := evalProtocol(&Payload{DoseMCG: Num(262), ProtocolDoseMCG: Num(250)}, cfg)
	assert.InDelta(t, 50.0, e.raw(), 0.0001)

	// the out-of-range penalty is flat
	e = evalProtocol(&Payload{DoseMCG: Num(500), ProtocolDoseMCG: Num(250)}, cfg)
	assert.Equal(t, protocolPenalty, e.raw())
}

func TestEvalProtocol_Monotonic(t *testing.T) {
	cfg := DefaultConfig()
	prev := evalProtocol(&Payload{DoseMCG: Num(250), ProtocolDoseMCG: Num(250)}, cfg).raw()

	for dose := 250.0; dose <= 500; dose += 0.5 {
		up := evalProtocol(&Payload{DoseMCG: Num(dose), ProtocolDoseMCG: Num(250)}, cfg).raw()
		down := evalProtocol(&Payload{DoseMCG: Num(500 - dose), ProtocolDoseMCG: Num(250)}, cfg).raw()
		assert.LessOrEqual(t, up, prev, "dose %.1f", dose)
		prev = up
		if 500-dose > 0 {
			assert.Equal(t, up, down, "symmetric around protocol at %.1f", dose)
		}
	}
}
