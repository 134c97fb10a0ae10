package confidence

import (
	"errors"
	"math"
	"strings"
	"time"
)

const timingMissPenalty = -5.0

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999-0700",
		"2006-01-02T15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		time.DateOnly,
	}

	errTimestamp = errors.New("unrecognized timestamp")
)

// evalTiming compares the time elapsed since the previous injection with the
// expected dosing interval.
//
// The elapsed time is taken as an absolute value, so an injection logged
// before the previous one scores the same as one logged after it.
func evalTiming(p *Payload, cfg Config) evaluation {
	t := p.Timing
	if t == nil {
		t = &Timing{}
	}

	lastRaw := strings.TrimSpace(string(t.LastInjectionAt))
	injRaw := strings.TrimSpace(string(t.InjectionAt))
	if !t.ExpectedIntervalHours.Present() || isZero(t.ExpectedIntervalHours) || lastRaw == "" || injRaw == "" {
		return neutral("Timing: not scored (missing schedule context).")
	}

	interval, ok := t.ExpectedIntervalHours.Float()
	if !ok || interval < 0 || math.IsInf(interval, 0) {
		return neutral("Timing: not scored (invalid schedule interval).")
	}

	last, lastZoned, err1 := parseTimestamp(lastRaw)
	inj, injZoned, err2 := parseTimestamp(injRaw)
	if err1 != nil || err2 != nil || lastZoned != injZoned {
		return neutral("Timing: not scored (invalid timestamps).")
	}

	elapsed := math.Abs(inj.Sub(last).Hours())
	frac := math.Abs(elapsed-interval) / interval

	switch {
	case frac <= cfg.TimingGoodFrac:
		return scored(cfg.TimingWeight, "Timing: aligns with your expected schedule.")
	case frac <= cfg.TimingGoodFrac*2:
		return scored(cfg.TimingWeight/2, "Timing: slightly off schedule.")
	default:
		return scored(timingMissPenalty, "Timing: notably off schedule.")
	}
}

// parseTimestamp parses an ISO-8601 timestamp. zoned reports whether the
// value carried a UTC offset; values without one are read as UTC.
func parseTimestamp(s string) (ts time.Time, zoned bool, err error) {
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, l := range zonedLayouts {
		if ts, err = time.Parse(l, s); err == nil {
			return ts, true, nil
		}
	}
	for _, l := range naiveLayouts {
		if ts, err = time.Parse(l, s); err == nil {
			return ts, false, nil
		}
	}
	return time.Time{}, false, errTimestamp
}
