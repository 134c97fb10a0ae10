package confidence

import (
	"log/slog"
	"math"
	"strconv"
)

const (
	minScore = 0.0
	maxScore = 100.0
)

// Band is the coarse confidence class derived from the score.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Component names used as keys in Result.Debug.
const (
	ComponentProtocol       = "protocol"
	ComponentVerification   = "verification"
	ComponentReconstitution = "reconstitution"
	ComponentTiming         = "timing"
	ComponentCertainty      = "certainty"
)

// Result is the outcome of scoring a single payload.
type Result struct {
	Score   float64            `json:"score" yaml:"score"`
	Band    Band               `json:"band" yaml:"band"`
	Reasons []string           `json:"reasons" yaml:"reasons"`
	Debug   map[string]float64 `json:"debug" yaml:"debug"`
}

// evaluation is what a single evaluator reports back to the aggregation.
type evaluation struct {
	// contributions feed applyComponent in sub-check order.
	contributions []float64
	// bonus is added to the score directly, outside the weight.
	bonus   float64
	reasons []string
}

func neutral(reason string) evaluation {
	return evaluation{contributions: []float64{0}, reasons: []string{reason}}
}

func scored(points float64, reason string) evaluation {
	return evaluation{contributions: []float64{points}, reasons: []string{reason}}
}

// raw is the component's contribution as reported in Result.Debug.
func (e evaluation) raw() float64 {
	sum := e.bonus
	for _, c := range e.contributions {
		sum += c
	}
	return sum
}

type component struct {
	name   string
	weight func(Config) float64
	eval   func(*Payload, Config) evaluation
}

// components are evaluated, and their reasons reported, in this order.
var components = []component{
	{ComponentProtocol, func(c Config) float64 { return c.ProtocolWeight }, evalProtocol},
	{ComponentVerification, func(c Config) float64 { return c.VerificationWeight }, evalVerification},
	{ComponentReconstitution, func(c Config) float64 { return c.ReconstitutionWeight }, evalReconstitution},
	{ComponentTiming, func(c Config) float64 { return c.TimingWeight }, evalTiming},
	// certainty is unweighted: it only ever reports a bonus.
	{ComponentCertainty, func(Config) float64 { return 0 }, evalCertainty},
}

// Scorer scores payloads against a validated Config. It is safe for
// concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a Scorer bound to it.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the configuration the Scorer was built with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score computes the confidence result for p.
func (s *Scorer) Score(p *Payload) *Result {
	return Compute(p, s.cfg)
}

// Compute scores p using cfg. A nil payload is scored as empty. cfg is used
// as given; use NewScorer to reject invalid configurations up front.
func Compute(p *Payload, cfg Config) *Result {
	if p == nil {
		p = &Payload{}
	}

	res := &Result{
		Reasons: make([]string, 0, len(components)+2),
		Debug:   make(map[string]float64, len(components)),
	}

	score := maxScore
	for _, c := range components {
		e := c.eval(p, cfg)
		delta := applyComponent(c.weight(cfg), e.contributions...) + e.bonus
		score += delta

		res.Reasons = append(res.Reasons, e.reasons...)
		res.Debug[c.name] = e.raw()
		slog.Debug("confidence component",
			"component", c.name, "raw", e.raw(), "delta", delta, "running", score)
	}

	res.Score = round1(clamp(score, minScore, maxScore))
	res.Band = cfg.band(res.Score)
	slog.Debug("confidence scored", "score", res.Score, "band", res.Band)
	return res
}

// applyComponent folds a weighted component's contributions into a score
// delta. Rewards saturate at weight while penalties are applied in full and
// stack, and the weight itself is always subtracted: a component at its best
// nets 0 and a component that was never evaluated nets -weight.
//
// The leading contribution enters the reward sum as-is; later contributions
// only add to it when positive. A penalty in the first sub-check therefore
// also cancels reward earned by the others.
func applyComponent(weight float64, contributions ...float64) float64 {
	var reward, penalty float64
	for i, c := range contributions {
		if c < 0 {
			penalty += c
		}
		if i == 0 || c > 0 {
			reward += c
		}
	}
	reward = math.Max(0, math.Min(weight, reward))
	return reward + penalty - weight
}

// band maps a final score to its Band, checking high first.
func (c Config) band(score float64) Band {
	switch {
	case score >= c.BandHigh:
		return BandHigh
	case score >= c.BandMedium:
		return BandMedium
	default:
		return BandLow
	}
}

// relDiff is |a-b|/|b|, with a zero reference giving 1 for a non-zero a and
// 0 otherwise.
func relDiff(a, b float64) float64 {
	if b == 0 {
		if a != 0 {
			return 1
		}
		return 0
	}
	return math.Abs(a-b) / math.Abs(b)
}

func clamp(n, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, n))
}

// round1 rounds to one decimal place using the shortest decimal form, so
// exact binary ties go to even (99.25 -> 99.2).
func round1(n float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(n, 'f', 1, 64), 64)
	if err != nil {
		return n
	}
	return r
}
