// Package state implements the shared Update State: its variants, the
// fixed-layout wire codec, the CRC-32/CKSUM integrity check, and the two
// persistence backends (RAM and scratch-flash).
package state

import (
	"fmt"

	"openenterprise/moonboot/hardware"
)

// UpdateErrorKind enumerates the reason a prior update attempt failed.
type UpdateErrorKind uint8

const (
	UpdateErrorInvalidImageIndex UpdateErrorKind = iota
	UpdateErrorImageExchangeFailed
	UpdateErrorInvalidState
	UpdateErrorInvalidSignature
)

func (k UpdateErrorKind) String() string {
	switch k {
	case UpdateErrorInvalidImageIndex:
		return "invalid-image-index"
	case UpdateErrorImageExchangeFailed:
		return "image-exchange-failed"
	case UpdateErrorInvalidState:
		return "invalid-state"
	case UpdateErrorInvalidSignature:
		return "invalid-signature"
	default:
		return fmt.Sprintf("updateerror(%d)", uint8(k))
	}
}

// ExchangeStep is the phase within a single page of a Scratch exchange.
// Meaningless for Direct exchange, where it is left zero-valued.
type ExchangeStep uint8

const (
	StepAToScratch ExchangeStep = iota
	StepBToA
	StepScratchToB
)

func (s ExchangeStep) String() string {
	switch s {
	case StepAToScratch:
		return "a-to-scratch"
	case StepBToA:
		return "b-to-a"
	case StepScratchToB:
		return "scratch-to-b"
	default:
		return fmt.Sprintf("exchangestep(%d)", uint8(s))
	}
}

// ExchangeProgress is the checkpoint record written after every page
// (Direct) or every sub-step (Scratch) of an in-flight exchange.
type ExchangeProgress struct {
	// A, B are the two regions being swapped. Invariant: A.Size == B.Size
	// and both non-zero.
	A, B hardware.Bank
	// PageIndex is the page most recently completed or currently on.
	PageIndex uint32
	// Step is the next sub-step to perform for PageIndex (Scratch only).
	Step ExchangeStep
	// Recovering is false if this exchange was initiated by a user
	// request, true if initiated to roll back a failed boot.
	Recovering bool
}

// UpdateKind tags which variant an Update value holds.
type UpdateKind uint8

const (
	UpdateNone UpdateKind = iota
	UpdateRequest
	UpdateRevert
	UpdateExchanging
	UpdateErrorState
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateNone:
		return "none"
	case UpdateRequest:
		return "request"
	case UpdateRevert:
		return "revert"
	case UpdateExchanging:
		return "exchanging"
	case UpdateErrorState:
		return "error"
	default:
		return fmt.Sprintf("updatekind(%d)", uint8(k))
	}
}

// Update is the decision variable of the bootloader state machine. It is
// a closed sum type encoded as a tag plus the union of possible
// payloads; construct one with the New* functions below and inspect it
// through the tag-checked accessors so that an inconsistent combination
// (e.g. kind None with a non-zero bank) cannot be built.
type Update struct {
	kind     UpdateKind
	bank     hardware.Bank
	progress ExchangeProgress
	errKind  UpdateErrorKind
}

// NewNone constructs Update::None: nothing to do, jump to boot_bank.
func NewNone() Update { return Update{kind: UpdateNone} }

// NewRequest constructs Update::Request(bank): the application staged an
// update from bank.
func NewRequest(bank hardware.Bank) Update { return Update{kind: UpdateRequest, bank: bank} }

// NewRevert constructs Update::Revert(bank): an update was applied;
// waiting for the new application to confirm itself.
func NewRevert(bank hardware.Bank) Update { return Update{kind: UpdateRevert, bank: bank} }

// NewExchanging constructs Update::Exchanging(progress): a swap was in
// flight when power was last cut.
func NewExchanging(progress ExchangeProgress) Update {
	return Update{kind: UpdateExchanging, progress: progress}
}

// NewError constructs Update::Error(kind): last attempt failed.
func NewError(kind UpdateErrorKind) Update { return Update{kind: UpdateErrorState, errKind: kind} }

// Kind reports which variant u holds.
func (u Update) Kind() UpdateKind { return u.kind }

// Bank returns the payload of Request or Revert, and whether u was one
// of those kinds.
func (u Update) Bank() (hardware.Bank, bool) {
	if u.kind != UpdateRequest && u.kind != UpdateRevert {
		return hardware.Bank{}, false
	}
	return u.bank, true
}

// Progress returns the payload of Exchanging, and whether u was that kind.
func (u Update) Progress() (ExchangeProgress, bool) {
	if u.kind != UpdateExchanging {
		return ExchangeProgress{}, false
	}
	return u.progress, true
}

// ErrorKind returns the payload of Error, and whether u was that kind.
func (u Update) ErrorKind() (UpdateErrorKind, bool) {
	if u.kind != UpdateErrorState {
		return 0, false
	}
	return u.errKind, true
}

// Equal reports whether u and other hold the same variant and payload.
func (u Update) Equal(other Update) bool {
	if u.kind != other.kind {
		return false
	}
	switch u.kind {
	case UpdateRequest, UpdateRevert:
		return u.bank == other.bank
	case UpdateExchanging:
		return u.progress == other.progress
	case UpdateErrorState:
		return u.errKind == other.errKind
	default:
		return true
	}
}

// MoonbootState is the shared record persisted by a Store.
type MoonbootState struct {
	Update Update
}
