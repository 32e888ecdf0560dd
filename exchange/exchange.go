// Package exchange implements the page-wise image exchange algorithms:
// Direct (destructive two-bank swap) and Scratch (non-destructive
// three-way swap through a dedicated scratch region). Both are
// checkpointed so a reset at any point can resume correctly.
package exchange

import (
	"fmt"

	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

// MaxInternalPageSize bounds the page buffers an Engine pre-allocates
// at construction time. The core never allocates on the exchange hot
// path; an engine's page size must fit within this cap.
const MaxInternalPageSize = 4096

// Kind names which backend produced an Error, preserving the
// distinction between a Storage failure and a State failure.
type Kind uint8

const (
	KindStorage Kind = iota
	KindState
)

func (k Kind) String() string {
	if k == KindState {
		return "state"
	}
	return "storage"
}

// Error wraps an underlying Storage or State error with which side
// produced it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exchange: %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func storageErr(err error) error { return &Error{Kind: KindStorage, Err: err} }
func stateErr(err error) error   { return &Error{Kind: KindState, Err: err} }

// Engine is the exchange contract both Direct and Scratch implement.
// Preconditions: progress.A.Size == progress.B.Size and both non-zero
// (violations are returned as an error, never asserted — see the
// design notes this implementation follows). Postcondition on success:
// every page of A and B has been swapped, and the last checkpoint
// written to store reflects the final page processed.
type Engine interface {
	Exchange(sto storage.Storage, store state.Store, progress state.ExchangeProgress) error
}
