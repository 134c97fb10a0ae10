package confidence

import "math"

const (
	protocolGoodShare = 25.0 / 30.0
	protocolOkShare   = 15.0 / 30.0
	protocolPenalty   = -15.0
)

// evalProtocol compares the reported dose against the protocol dose. Tiers
// are checked in ascending order and the first match wins.
func evalProtocol(p *Payload, cfg Config) evaluation {
	if p.HasActiveProtocol.False() {
		return neutral("Protocol match: not scored (no active protocol).")
	}

	dose, proto := p.DoseMCG, p.ProtocolDoseMCG
	if !dose.Present() || !proto.Present() || isZero(dose) || isZero(proto) {
		return neutral("Protocol match: not scored (missing protocol or dose).")
	}

	reported, ok1 := dose.Float()
	prescribed, ok2 := proto.Float()
	d := relDiff(reported, prescribed)
	if !ok1 || !ok2 || math.IsNaN(d) || math.IsInf(d, 0) {
		return neutral("Protocol match: not scored (invalid numbers).")
	}

	switch {
	case d <= cfg.ProtocolExactPct:
		return scored(cfg.ProtocolWeight, "Protocol match: dose aligns closely with your protocol.")
	case d <= cfg.ProtocolGoodPct:
		return scored(cfg.ProtocolWeight*protocolGoodShare, "Protocol match: dose is within the protocol tolerance.")
	case d <= cfg.ProtocolOkPct:
		return scored(cfg.ProtocolWeight*protocolOkShare, "Protocol match: dose is slightly outside the preferred range.")
	default:
		return scored(protocolPenalty, "Protocol match: dose appears off relative to your protocol.")
	}
}

func isZero(n Number) bool {
	v, ok := n.Float()
	return ok && v == 0
}
