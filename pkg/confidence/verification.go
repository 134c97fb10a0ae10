package confidence

const (
	lowContrastShare = 15.0 / 35.0
	noSnapShare      = 25.0 / 35.0
	manualPoints     = 5.0

	syringeTypeMatchBonus      = 5.0
	syringeTypeMismatchPenalty = -10.0
)

// evalVerification scores the plunger-position check. The first matching
// case wins; the syringe type check is applied independently as a bonus.
func evalVerification(p *Payload, cfg Config) evaluation {
	s := p.Syringe
	if s == nil {
		s = &Syringe{}
	}

	camera, snap := s.CameraUsed.True(), s.SnapSuccess.True()

	var e evaluation
	switch {
	case s.VerificationSkipped.True():
		e = scored(0, "Syringe verification: skipped.")
	case camera && snap && !s.LowContrast.True():
		e = scored(cfg.VerificationWeight, "Syringe verification: camera + snap confirmed plunger position.")
	case camera && snap:
		e = scored(cfg.VerificationWeight*lowContrastShare, "Syringe verification: snap succeeded, but image contrast was low.")
	case camera:
		e = scored(cfg.VerificationWeight*noSnapShare, "Syringe verification: camera used (no snap).")
	case s.ManualConfirmed.True():
		e = scored(manualPoints, "Syringe verification: manually confirmed.")
	default:
		e = scored(0, "Syringe verification: not provided.")
	}

	used, expected := s.TypeUsed.normalized(), s.TypeExpected.normalized()
	if used != "" && expected != "" {
		if used == expected {
			e.bonus = syringeTypeMatchBonus
			e.reasons = append(e.reasons, "Syringe type: matches the expected syringe.")
		} else {
			e.bonus = syringeTypeMismatchPenalty
			e.reasons = append(e.reasons, "Syringe type: does not match the expected syringe.")
		}
	}
	return e
}
