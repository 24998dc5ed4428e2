// Package guard implements the invariant checks run over labeled time-series
// data and its dataset partitioning.
//
// Record-level checks (event triplets, windows, sampling) return a Result and
// never stop a batch. Dataset-level checks (split leakage, class presence,
// label domain) return an error; a non-nil error means the run must stop.
package guard

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a Result.
type Kind int

const (
	KindOK Kind = iota
	KindViolation
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindViolation:
		return "violation"
	case KindPrecondition:
		return "precondition"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalJSON encodes the kind as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*k = KindOK
	case "violation":
		*k = KindViolation
	case "precondition":
		*k = KindPrecondition
	default:
		return fmt.Errorf("guard: unknown result kind %q", s)
	}
	return nil
}

// MessageOK is the message of every passing Result.
const MessageOK = "OK"

// Result is the outcome of a record-level check.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// Pass returns a passing Result.
func Pass() Result { return Result{OK: true, Message: MessageOK, Kind: KindOK} }

// Violation returns a Result for input that breaks the invariant.
func Violation(msg string) Result { return Result{Message: msg, Kind: KindViolation} }

// Precondition returns a Result for input the check cannot evaluate.
func Precondition(msg string) Result { return Result{Message: msg, Kind: KindPrecondition} }

// Unpack returns the (ok, message) pair.
func (r Result) Unpack() (bool, string) { return r.OK, r.Message }
