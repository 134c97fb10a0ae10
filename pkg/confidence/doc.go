// Package confidence implements the injection-confidence scoring model. It
// turns a partially populated [Payload] into a 0-100 score, a [Band] and the
// list of reasons behind it. The score measures data alignment and
// verification quality only; it is not a dosage safety judgment.
//
// Scoring is pure: [Compute] and [Scorer.Score] perform no I/O, keep no state
// between calls and are safe for concurrent use.
package confidence
