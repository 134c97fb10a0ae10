package confidence

import (
	"fmt"
	"math"
)

// Config holds the component weights, tolerances and band cutoffs of the model.
// A Config is treated as immutable once handed to a Scorer.
type Config struct {
	ProtocolWeight       float64 `json:"protocol_weight" yaml:"protocol_weight" mapstructure:"protocol_weight"`
	VerificationWeight   float64 `json:"verification_weight" yaml:"verification_weight" mapstructure:"verification_weight"`
	ReconstitutionWeight float64 `json:"reconstitution_weight" yaml:"reconstitution_weight" mapstructure:"reconstitution_weight"`
	TimingWeight         float64 `json:"timing_weight" yaml:"timing_weight" mapstructure:"timing_weight"`

	// Relative difference between reported and prescribed dose.
	ProtocolExactPct float64 `json:"protocol_exact_pct" yaml:"protocol_exact_pct" mapstructure:"protocol_exact_pct"`
	ProtocolGoodPct  float64 `json:"protocol_good_pct" yaml:"protocol_good_pct" mapstructure:"protocol_good_pct"`
	ProtocolOkPct    float64 `json:"protocol_ok_pct" yaml:"protocol_ok_pct" mapstructure:"protocol_ok_pct"`

	// Absolute drift in reconstitution water volume (ml).
	WaterToleranceML float64 `json:"water_tolerance_ml" yaml:"water_tolerance_ml" mapstructure:"water_tolerance_ml"`
	ConcMinorPct     float64 `json:"conc_minor_pct" yaml:"conc_minor_pct" mapstructure:"conc_minor_pct"`
	ConcOkPct        float64 `json:"conc_ok_pct" yaml:"conc_ok_pct" mapstructure:"conc_ok_pct"`

	// Fraction of the expected dosing interval.
	TimingGoodFrac float64 `json:"timing_good_frac" yaml:"timing_good_frac" mapstructure:"timing_good_frac"`

	BandHigh   float64 `json:"band_high" yaml:"band_high" mapstructure:"band_high"`
	BandMedium float64 `json:"band_medium" yaml:"band_medium" mapstructure:"band_medium"`
}

// DefaultConfig returns the stock model configuration.
func DefaultConfig() Config {
	return Config{
		ProtocolWeight:       30,
		VerificationWeight:   35,
		ReconstitutionWeight: 20,
		TimingWeight:         10,
		ProtocolExactPct:     0.02,
		ProtocolGoodPct:      0.05,
		ProtocolOkPct:        0.10,
		WaterToleranceML:     0.2,
		ConcMinorPct:         0.03,
		ConcOkPct:            0.08,
		TimingGoodFrac:       0.20,
		BandHigh:             85,
		BandMedium:           65,
	}
}

// ConfigError describes an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid confidence config %s: %s", e.Field, e.Message)
}

type configField struct {
	field string
	val   float64
}

// Validate checks the configuration invariants and returns a *ConfigError
// for the first violation found.
func (c Config) Validate() error {
	nonNegative := []configField{
		{"protocol_weight", c.ProtocolWeight},
		{"verification_weight", c.VerificationWeight},
		{"reconstitution_weight", c.ReconstitutionWeight},
		{"timing_weight", c.TimingWeight},
		{"protocol_exact_pct", c.ProtocolExactPct},
		{"protocol_good_pct", c.ProtocolGoodPct},
		{"protocol_ok_pct", c.ProtocolOkPct},
		{"water_tolerance_ml", c.WaterToleranceML},
		{"conc_minor_pct", c.ConcMinorPct},
		{"conc_ok_pct", c.ConcOkPct},
		{"timing_good_frac", c.TimingGoodFrac},
	}
	finite := append([]configField{
		{"band_high", c.BandHigh},
		{"band_medium", c.BandMedium},
	}, nonNegative...)
	for _, v := range finite {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return &ConfigError{Field: v.field, Message: fmt.Sprintf("must be a finite number, got %v", v.val)}
		}
	}

	for _, v := range nonNegative {
		if v.val < 0 {
			return &ConfigError{Field: v.field, Message: fmt.Sprintf("must not be negative, got %v", v.val)}
		}
	}

	if c.ProtocolExactPct > c.ProtocolGoodPct || c.ProtocolGoodPct > c.ProtocolOkPct {
		return &ConfigError{Field: "protocol_*_pct", Message: "tiers must be ascending (exact <= good <= ok)"}
	}
	if c.ConcMinorPct > c.ConcOkPct {
		return &ConfigError{Field: "conc_*_pct", Message: "tiers must be ascending (minor <= ok)"}
	}

	if c.BandHigh <= c.BandMedium {
		return &ConfigError{Field: "band_high", Message: fmt.Sprintf("must be greater than band_medium (%v)", c.BandMedium)}
	}
	if c.BandMedium < minScore || c.BandHigh > maxScore {
		return &ConfigError{Field: "band_*", Message: "cutoffs must be within [0, 100]"}
	}
	return nil
}

// TotalWeight is the sum of the four component weights, i.e. the amount an
// entirely empty payload loses.
func (c Config) TotalWeight() float64 {
	return c.ProtocolWeight + c.VerificationWeight + c.ReconstitutionWeight + c.TimingWeight
}
