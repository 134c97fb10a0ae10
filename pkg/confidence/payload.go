package confidence

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Payload is a single injection observation. Every group and every field is
// optional; an absent group is nil and an absent scalar is its zero value.
type Payload struct {
	DoseMCG           Number `json:"dose_mcg,omitzero"`
	ProtocolDoseMCG   Number `json:"protocol_dose_mcg,omitzero"`
	HasActiveProtocol Flag   `json:"has_active_protocol,omitzero"`

	Syringe        *Syringe        `json:"syringe,omitempty"`
	Reconstitution *Reconstitution `json:"reconstitution,omitempty"`
	Timing         *Timing         `json:"timing,omitempty"`
	Certainty      *Certainty      `json:"certainty,omitempty"`
}

// Syringe holds the plunger-position verification signals.
type Syringe struct {
	CameraUsed          Flag `json:"camera_used,omitzero"`
	SnapSuccess         Flag `json:"snap_success,omitzero"`
	LowContrast         Flag `json:"low_contrast,omitzero"`
	VerificationSkipped Flag `json:"verification_skipped,omitzero"`
	ManualConfirmed     Flag `json:"manual_confirmed,omitzero"`
	TypeUsed            Text `json:"syringe_type_used,omitzero"`
	TypeExpected        Text `json:"syringe_type_expected,omitzero"`
}

// Reconstitution holds the planned and actual mix of the vial.
type Reconstitution struct {
	WaterMLExpected       Number `json:"bac_ml_expected,omitzero"`
	WaterMLUsed           Number `json:"bac_ml_used,omitzero"`
	ConcentrationExpected Number `json:"concentration_expected,omitzero"`
	ConcentrationUsed     Number `json:"concentration_used,omitzero"`
}

// Timing holds the schedule context of the injection.
type Timing struct {
	ExpectedIntervalHours Number `json:"expected_interval_hours,omitzero"`
	LastInjectionAt       Text   `json:"last_injection_at_iso,omitzero"`
	InjectionAt           Text   `json:"injection_at_iso,omitzero"`
}

// Certainty holds the override and assistance flags.
type Certainty struct {
	ManualDoseEdit    Flag `json:"manual_dose_edit,omitzero"`
	WarningOverridden Flag `json:"warning_overridden,omitzero"`
	AIConfirmed       Flag `json:"pep_ai_confirmed,omitzero"`
}

var errPayloadNotObject = errors.New("payload must be a JSON object")

// DecodePayload parses a JSON document into a Payload. It fails only when the
// document is not a JSON object; malformed fields and groups decode as absent
// or invalid and are left for the evaluators to treat as not scored.
func DecodePayload(b []byte) (*Payload, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, errPayloadNotObject
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, errors.Join(errPayloadNotObject, err)
	}
	return &p, nil
}

// lenientObject decodes b into v and resets v when b is not a usable object.
func lenientObject[T any](b []byte, v *T) {
	if err := json.Unmarshal(b, v); err != nil {
		slog.Debug("payload group ignored", "error", err)
		var zero T
		*v = zero
	}
}

func (s *Syringe) UnmarshalJSON(b []byte) error {
	type plain Syringe
	var p plain
	lenientObject(b, &p)
	*s = Syringe(p)
	return nil
}

func (r *Reconstitution) UnmarshalJSON(b []byte) error {
	type plain Reconstitution
	var p plain
	lenientObject(b, &p)
	*r = Reconstitution(p)
	return nil
}

func (t *Timing) UnmarshalJSON(b []byte) error {
	type plain Timing
	var p plain
	lenientObject(b, &p)
	*t = Timing(p)
	return nil
}

func (c *Certainty) UnmarshalJSON(b []byte) error {
	type plain Certainty
	var p plain
	lenientObject(b, &p)
	*c = Certainty(p)
	return nil
}

type scalarState uint8

const (
	stateAbsent scalarState = iota
	stateInvalid
	stateValid
)

// Number is an optional numeric field. It decodes from a JSON number or a
// numeric string; null and empty strings are absent, anything else is
// present but invalid.
type Number struct {
	val   float64
	state scalarState
	raw   json.RawMessage
}

// Num returns a valid Number.
func Num(v float64) Number {
	return Number{val: v, state: stateValid}
}

// Float returns the value and whether it is present and numeric.
func (n Number) Float() (float64, bool) {
	return n.val, n.state == stateValid
}

// Present reports whether the field was supplied, valid or not.
func (n Number) Present() bool { return n.state != stateAbsent }

// Invalid reports whether the field was supplied but is not numeric.
func (n Number) Invalid() bool { return n.state == stateInvalid }

func (n Number) IsZero() bool { return n.state == stateAbsent }

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	v, err := decodeScalar(b)
	if err != nil {
		n.markInvalid(b)
		return nil
	}
	switch t := v.(type) {
	case string:
		if v = strings.TrimSpace(t); v == "" {
			return nil
		}
	case json.Number:
	default:
		n.markInvalid(b)
		return nil
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		n.markInvalid(b)
		return nil
	}
	*n = Num(f)
	return nil
}

// decodeScalar decodes b keeping numbers as json.Number.
func decodeScalar(b []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (n *Number) markInvalid(b []byte) {
	n.state = stateInvalid
	n.raw = append(json.RawMessage(nil), b...)
}

func (n Number) MarshalJSON() ([]byte, error) {
	switch n.state {
	case stateValid:
		return json.Marshal(n.val)
	case stateInvalid:
		return n.raw, nil
	default:
		return []byte("null"), nil
	}
}

// truthyWords extend the strings cast.ToBoolE accepts as true.
var truthyWords = map[string]struct{}{
	"yes": {},
	"y":   {},
	"on":  {},
}

// Flag is an optional boolean field. It is true for JSON true, a non-zero
// number, "yes", "y", "on" or any string strconv.ParseBool reads as true
// ("true", "1", "t"); any other supplied value is false.
type Flag struct {
	val bool
	set bool
}

// Bool returns a set Flag.
func Bool(v bool) Flag {
	return Flag{val: v, set: true}
}

// True reports whether the flag was supplied and is true.
func (f Flag) True() bool { return f.set && f.val }

// False reports whether the flag was supplied and is false. An absent flag
// is neither true nor false.
func (f Flag) False() bool { return f.set && !f.val }

func (f Flag) IsZero() bool { return !f.set }

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	f.set = true

	v, err := decodeScalar(b)
	if err != nil {
		return nil
	}
	switch t := v.(type) {
	case json.Number:
		x, err := cast.ToFloat64E(t)
		f.val = err == nil && x != 0
	case string:
		w := strings.ToLower(strings.TrimSpace(t))
		if _, ok := truthyWords[w]; ok {
			f.val = true
			return nil
		}
		f.val, _ = cast.ToBoolE(w)
	default:
		f.val, _ = cast.ToBoolE(v)
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.val)
}

// Text is an optional string field. Non-string values decode as empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

func (t Text) IsZero() bool { return t == "" }

// normalized returns the trimmed, lower-cased value.
func (t Text) normalized() string {
	return strings.ToLower(strings.TrimSpace(string(t)))
}
