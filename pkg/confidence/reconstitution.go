package confidence

import "math"

const (
	waterMatchPoints     = 10.0
	waterMismatchPenalty = -10.0
	concMatchPoints      = 10.0
	concMismatchPenalty  = -15.0
)

// evalReconstitution runs the water-volume and concentration sub-checks.
// Contributions are reported water first; applyComponent relies on that
// order when capping the reward.
func evalReconstitution(p *Payload, cfg Config) evaluation {
	r := p.Reconstitution
	if r == nil {
		r = &Reconstitution{}
	}

	e := evaluation{contributions: make([]float64, 0, 2)}
	checked := false

	water, reason, ok := checkWater(r.WaterMLExpected, r.WaterMLUsed, cfg)
	if ok {
		checked = true
		e.reasons = append(e.reasons, reason)
	}
	e.contributions = append(e.contributions, water)

	conc, reason, ok := checkConcentration(r.ConcentrationExpected, r.ConcentrationUsed, cfg)
	if ok {
		checked = true
		e.reasons = append(e.reasons, reason)
	}
	e.contributions = append(e.contributions, conc)

	if !checked {
		e.reasons = append(e.reasons, "Reconstitution: not scored (missing reconstitution data).")
	}
	return e
}

// checkWater returns the water sub-check points and reason; ok is false when
// the sub-check did not apply.
func checkWater(expected, used Number, cfg Config) (points float64, reason string, ok bool) {
	if !expected.Present() || !used.Present() {
		return 0, "", false
	}
	exp, ok1 := expected.Float()
	act, ok2 := used.Float()
	diff := math.Abs(exp - act)
	if !ok1 || !ok2 || math.IsNaN(diff) || math.IsInf(diff, 0) {
		return 0, "Reconstitution: BAC check not scored (invalid numbers).", true
	}

	switch {
	case diff <= cfg.WaterToleranceML:
		return waterMatchPoints, "Reconstitution: BAC water amount matches your plan.", true
	case diff <= cfg.WaterToleranceML*2:
		return waterMatchPoints / 2, "Reconstitution: BAC water amount is close to your plan.", true
	default:
		return waterMismatchPenalty, "Reconstitution: BAC water amount appears inconsistent with your plan.", true
	}
}

// checkConcentration returns the concentration sub-check points and reason;
// ok is false when the sub-check did not apply.
func checkConcentration(expected, used Number, cfg Config) (points float64, reason string, ok bool) {
	if !expected.Present() || !used.Present() {
		return 0, "", false
	}
	exp, ok1 := expected.Float()
	act, ok2 := used.Float()
	d := relDiff(act, exp)
	if !ok1 || !ok2 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, "Reconstitution: concentration not scored (invalid numbers).", true
	}

	switch {
	case d <= cfg.ConcMinorPct:
		return concMatchPoints, "Reconstitution: concentration aligns with your expected mix.", true
	case d <= cfg.ConcOkPct:
		return concMatchPoints / 2, "Reconstitution: concentration is close (minor rounding/mismatch).", true
	default:
		return concMismatchPenalty, "Reconstitution: concentration looks inconsistent with your expected mix.", true
	}
}
