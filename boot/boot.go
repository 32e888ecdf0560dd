// Package boot implements the Bootloader role: the resident image that
// runs first after every reset, acts on the shared Update State, and
// transfers control to the application slot.
package boot

import (
	"fmt"
	"log/slog"

	"openenterprise/moonboot/exchange"
	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/processor"
	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

// Boot is the Bootloader role. Construct one with New, then call Boot
// exactly once per reset.
type Boot struct {
	config    hardware.Config
	storage   storage.Storage
	store     state.Store
	processor processor.Processor
	engine    exchange.Engine
	preJump   func()
	logger    *slog.Logger
}

// New constructs a Boot. preJump may be nil, in which case it defaults
// to a no-op — the emulation the spec's design notes call for in place
// of weak linkage. logger may be nil.
func New(config hardware.Config, sto storage.Storage, store state.Store, proc processor.Processor, engine exchange.Engine, preJump func(), logger *slog.Logger) *Boot {
	if preJump == nil {
		preJump = func() {}
	}
	return &Boot{
		config:    config,
		storage:   sto,
		store:     store,
		processor: proc,
		engine:    engine,
		preJump:   preJump,
		logger:    logger,
	}
}

func (b *Boot) logf(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

// Boot runs the deterministic boot sequence (§4.1): set up the
// processor, read the update state, dispatch on it, write the new
// state, run the pre-jump hook, and jump. On real hardware DoJump never
// returns; this method only returns at all because test/host Processor
// implementations return from DoJump so the resulting state transition
// can be asserted.
func (b *Boot) Boot() error {
	b.processor.Setup(b.config)

	st, err := b.store.Read()
	if err != nil {
		b.logf("boot:state-read-failed", slog.String("error", err.Error()))
		return fmt.Errorf("boot: read state: %w", err)
	}

	var next state.Update
	switch st.Update.Kind() {
	case state.UpdateNone:
		next = state.NewNone()

	case state.UpdateRequest:
		bank, _ := st.Update.Bank()
		b.logf("boot:exchanging", slog.Uint64("from", uint64(bank.Location)))
		next = b.exchangeFirmwares(bank, true)

	case state.UpdateRevert:
		bank, _ := st.Update.Bank()
		b.logf("boot:revert", slog.Uint64("bank", uint64(bank.Location)))
		next = b.exchangeFirmwares(bank, false)

	case state.UpdateExchanging:
		progress, _ := st.Update.Progress()
		b.logf("boot:resume", slog.Uint64("page_index", uint64(progress.PageIndex)))
		next = b.resumeExchange(progress)

	case state.UpdateErrorState:
		// Sticky: re-emit unchanged until an external tool clears it.
		next = st.Update

	default:
		next = state.NewError(state.UpdateErrorInvalidState)
	}

	if err := b.store.Write(state.MoonbootState{Update: next}); err != nil {
		b.logf("boot:state-write-failed", slog.String("error", err.Error()))
		return fmt.Errorf("boot: write state: %w", err)
	}

	b.preJump()
	b.processor.DoJump(b.config.BootBank.Location)
	return nil
}

// exchangeFirmwares implements §4.1's exchange_firmwares.
func (b *Boot) exchangeFirmwares(newBank hardware.Bank, withFailsafeRevert bool) state.Update {
	old := b.config.BootBank
	if newBank == old {
		b.logf("boot:self-swap-refused", slog.Uint64("bank", uint64(newBank.Location)))
		return state.NewError(state.UpdateErrorInvalidImageIndex)
	}

	// Recovering is left zero here: the engine re-derives it itself from
	// the record still in store at this point (Request or Revert,
	// depending on which path got us here) before writing any checkpoint.
	progress := state.ExchangeProgress{
		A:         newBank,
		B:         old,
		PageIndex: 0,
		Step:      state.StepAToScratch,
	}
	if err := b.engine.Exchange(b.storage, b.store, progress); err != nil {
		b.logf("boot:exchange-failed", slog.String("error", err.Error()))
		return state.NewError(state.UpdateErrorImageExchangeFailed)
	}

	if withFailsafeRevert {
		return state.NewRevert(newBank)
	}
	return state.NewNone()
}

// resumeExchange implements §4.1's resume_exchange.
func (b *Boot) resumeExchange(progress state.ExchangeProgress) state.Update {
	if err := b.engine.Exchange(b.storage, b.store, progress); err != nil {
		b.logf("boot:resume-failed", slog.String("error", err.Error()))
		return state.NewError(state.UpdateErrorImageExchangeFailed)
	}

	st, err := b.store.Read()
	if err != nil {
		return state.NewError(state.UpdateErrorInvalidState)
	}

	if p, ok := st.Update.Progress(); ok {
		if p.Recovering {
			return state.NewNone()
		}
		return state.NewRevert(p.A)
	}
	return state.NewError(state.UpdateErrorInvalidState)
}

// Destroy returns the constructor's dependencies, for orderly hand-back
// when a test wants to inspect them after a run.
func (b *Boot) Destroy() (hardware.Config, storage.Storage, state.Store, processor.Processor) {
	return b.config, b.storage, b.store, b.processor
}
