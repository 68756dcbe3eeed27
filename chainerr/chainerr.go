// Package chainerr defines the error taxonomy shared by the transaction
// pool and the proposer. Sentinel errors are compared with errors.Is;
// the parameterised ones carry enough context to be logged usefully at
// the RPC/transport boundary without the pool or proposer needing to know
// about that boundary.
package chainerr

import (
	"errors"
	"fmt"
)

// Sentinel pool/verification errors.
var (
	// ErrInvalidExtrinsicFormat is returned when the raw bytes submitted to
	// the pool do not decode as an extrinsic.
	ErrInvalidExtrinsicFormat = errors.New("invalid extrinsic format")
	// ErrIsInherent is returned when a submitted extrinsic is unsigned.
	// Inherents are produced by the chain itself and must never enter the
	// pool through Submit.
	ErrIsInherent = errors.New("extrinsic is an inherent, not a signed transaction")
	// ErrPoolFull is returned when the pool has reached its configured
	// byte-capacity and the incoming transaction would exceed it.
	ErrPoolFull = errors.New("transaction pool full")
	// ErrTimer is returned when the delay timer backing an evaluation
	// could not be armed.
	ErrTimer = errors.New("evaluation delay timer error")
	// ErrInvalidSignature is returned when a signed extrinsic's signature
	// does not verify against its claimed sender.
	ErrInvalidSignature = errors.New("invalid extrinsic signature")
)

// TooLargeError reports a single extrinsic exceeding the size ceiling.
type TooLargeError struct {
	Actual int
	Limit  int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("extrinsic too large: %d bytes exceeds limit of %d", e.Actual, e.Limit)
}

// TooLarge constructs a TooLargeError.
func TooLarge(actual, limit int) error {
	return &TooLargeError{Actual: actual, Limit: limit}
}

// APIError wraps an infrastructure-level failure surfaced by the Chain API.
// It is distinct from a normal "block rejected by execution" result, which
// chainapi reports as a plain boolean rather than an error.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string { return fmt.Sprintf("chain api %s: %v", e.Op, e.Err) }
func (e *APIError) Unwrap() error { return e.Err }

// API wraps err as an infrastructure-level Chain API failure.
func API(op string, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{Op: op, Err: err}
}

// EvaluationKind enumerates the structural reasons evaluateInitial can fail.
type EvaluationKind string

const (
	EvalBadParentHash   EvaluationKind = "bad_parent_hash"
	EvalBadParentNumber EvaluationKind = "bad_parent_number"
	EvalBadTimestamp    EvaluationKind = "bad_timestamp"
	EvalTooLarge        EvaluationKind = "block_too_large"
)

// EvaluationError reports a structural defect found by evaluateInitial.
type EvaluationError struct {
	Kind EvaluationKind
	Msg  string
}

func (e *EvaluationError) Error() string { return fmt.Sprintf("evaluation failed (%s): %s", e.Kind, e.Msg) }

// Evaluation constructs an EvaluationError.
func Evaluation(kind EvaluationKind, msg string) error {
	return &EvaluationError{Kind: kind, Msg: msg}
}
