package confidence

const (
	manualEditPenalty      = -5.0
	warningOverridePenalty = -10.0
	aiConfirmedBonus       = 5.0
)

// evalCertainty applies the override flags. Each flag is independent and
// adds its own reason.
func evalCertainty(p *Payload, _ Config) evaluation {
	var e evaluation
	c := p.Certainty
	if c == nil {
		return e
	}

	if c.ManualDoseEdit.True() {
		e.bonus += manualEditPenalty
		e.reasons = append(e.reasons, "Certainty: dose was manually edited.")
	}
	if c.WarningOverridden.True() {
		e.bonus += warningOverridePenalty
		e.reasons = append(e.reasons, "Certainty: warning was overridden.")
	}
	if c.AIConfirmed.True() {
		e.bonus += aiConfirmedBonus
		e.reasons = append(e.reasons, "Certainty: Pep AI confirmation used.")
	}
	return e
}
