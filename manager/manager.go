// Package manager implements the Manager role: the half of moonboot
// linked into the application firmware, which acknowledges successful
// boots and stages updates.
package manager

import (
	"errors"
	"fmt"
	"log/slog"

	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/processor"
	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

// ErrUpdateQueuedButNotInstalled is returned by MarkBootSuccessful when
// the application is running with a Request (or Exchanging) still
// pending: control reached the application without going through the
// bootloader's exchange step.
var ErrUpdateQueuedButNotInstalled = errors.New("manager: update was queued but control bypassed the bootloader")

// Manager is the application-side role.
type Manager struct {
	config    hardware.Config
	storage   storage.Storage
	store     state.Store
	processor processor.Processor
	preJump   func()
	logger    *slog.Logger
}

// New constructs a Manager. It fails if update_bank.size > boot_bank.size
// or either bank is zero-sized; no device side effects occur before that
// check. preJump may be nil (defaults to a no-op); logger may be nil.
func New(config hardware.Config, sto storage.Storage, store state.Store, proc processor.Processor, preJump func(), logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	if preJump == nil {
		preJump = func() {}
	}
	return &Manager{
		config:    config,
		storage:   sto,
		store:     store,
		processor: proc,
		preJump:   preJump,
		logger:    logger,
	}, nil
}

func (m *Manager) logf(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

// MarkBootSuccessful is called by the application shortly after
// startup. None stays None; Revert(_) becomes None. Any other prior
// value means the application ran without going through the
// bootloader's exchange step after staging an update, and is reported
// as ErrUpdateQueuedButNotInstalled without mutating the state record.
func (m *Manager) MarkBootSuccessful() error {
	st, err := m.store.Read()
	if err != nil {
		return fmt.Errorf("manager: read state: %w", err)
	}

	switch st.Update.Kind() {
	case state.UpdateNone:
		return nil
	case state.UpdateRevert:
		if err := m.store.Write(state.MoonbootState{Update: state.NewNone()}); err != nil {
			return fmt.Errorf("manager: write state: %w", err)
		}
		m.logf("manager:boot-confirmed")
		return nil
	default:
		return ErrUpdateQueuedButNotInstalled
	}
}

// Update arms the state machine for a firmware swap and jumps into the
// bootloader. Diverges on real hardware; like boot.Boot.Boot, it only
// returns in host/test builds where Processor.DoJump returns.
func (m *Manager) Update() error {
	st, err := m.store.Read()
	if err != nil {
		return fmt.Errorf("manager: read state: %w", err)
	}
	if st.Update.Kind() != state.UpdateNone {
		m.logf("manager:update-override", slog.String("prior_kind", st.Update.Kind().String()))
	}

	if err := m.store.Write(state.MoonbootState{Update: state.NewRequest(m.config.UpdateBank)}); err != nil {
		return fmt.Errorf("manager: write state: %w", err)
	}

	m.preJump()
	m.processor.DoJump(m.config.BootloaderBank.Location)
	return nil
}

// ReadUpdateBank reads len(buf) bytes starting at offset within the
// update bank, so the application can inspect a staged image through
// the same object that will later arm it, without recomputing the
// bank's absolute address itself.
func (m *Manager) ReadUpdateBank(offset uint32, buf []byte) error {
	if uint64(offset)+uint64(len(buf)) > uint64(m.config.UpdateBank.Size) {
		return fmt.Errorf("manager: read [0x%x, 0x%x) past end of update bank (size 0x%x)", offset, uint64(offset)+uint64(len(buf)), m.config.UpdateBank.Size)
	}
	return m.storage.ReadAt(uint32(m.config.UpdateBank.Location)+offset, buf)
}

// WriteUpdateBank writes buf at offset within the update bank, e.g. to
// stream a downloaded image in before calling Update.
func (m *Manager) WriteUpdateBank(offset uint32, buf []byte) error {
	if uint64(offset)+uint64(len(buf)) > uint64(m.config.UpdateBank.Size) {
		return fmt.Errorf("manager: write [0x%x, 0x%x) past end of update bank (size 0x%x)", offset, uint64(offset)+uint64(len(buf)), m.config.UpdateBank.Size)
	}
	return m.storage.WriteAt(uint32(m.config.UpdateBank.Location)+offset, buf)
}

// Destroy returns the constructor's dependencies, for orderly hand-back
// when a test wants to inspect them after a run.
func (m *Manager) Destroy() (hardware.Config, storage.Storage, state.Store, processor.Processor) {
	return m.config, m.storage, m.store, m.processor
}
