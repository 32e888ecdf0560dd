// Package hardware describes the static device partitioning moonboot
// operates over: memory addresses, banks, and the two configuration
// structs fixed at build time.
package hardware

import "fmt"

// Address names a byte offset inside a memory unit.
type Address uint32

// MemoryUnit names where a Bank lives. The core only ever exchanges banks
// within a single unit; external units are a placeholder for future
// hardware support.
type MemoryUnit uint8

const (
	// MemoryInternal is the device's single internal flash/RAM unit.
	MemoryInternal MemoryUnit = iota
)

func (m MemoryUnit) String() string {
	switch m {
	case MemoryInternal:
		return "internal"
	default:
		return fmt.Sprintf("memoryunit(%d)", uint8(m))
	}
}

// Bank is a contiguous region identified by base address and size.
type Bank struct {
	Location   Address
	Size       Address
	MemoryUnit MemoryUnit
}

// End returns the address one past the end of the bank, failing if the
// range overflows Address.
func (b Bank) End() (Address, error) {
	end := uint64(b.Location) + uint64(b.Size)
	if end > uint64(^Address(0)) {
		return 0, fmt.Errorf("hardware: bank at 0x%x size 0x%x overflows address space", b.Location, b.Size)
	}
	return Address(end), nil
}

// Overlaps reports whether b and other share any byte.
func (b Bank) Overlaps(other Bank) bool {
	bEnd, err := b.End()
	if err != nil {
		return true
	}
	oEnd, err := other.End()
	if err != nil {
		return true
	}
	return b.Location < oEnd && other.Location < bEnd
}

// Config is the static device partitioning, fixed at build time.
type Config struct {
	// BootBank is the slot from which firmware executes.
	BootBank Bank
	// UpdateBank is a peer slot the Manager writes new images into.
	UpdateBank Bank
	// BootloaderBank is where the bootloader image itself lives.
	BootloaderBank Bank
	// ScratchBank is the region used by the Scratch exchange; unused by Direct.
	ScratchBank Bank
	// RAMBank is the device's RAM extent.
	RAMBank Bank
}

// bankSizingError is returned by Validate when the update bank is
// larger than the boot bank, or either is zero-sized.
//
// The type is unexported; each caller (Manager.New) wraps it so the
// error message can name which party is constructing.
type bankSizingError struct {
	boot, update Bank
}

func (e *bankSizingError) Error() string {
	return fmt.Sprintf("hardware: update bank size 0x%x exceeds boot bank size 0x%x, or a bank is zero-sized", e.update.Size, e.boot.Size)
}

// Validate checks the one cross-bank invariant the core enforces at
// construction time: the update bank must fit inside the boot bank, and
// neither may be empty.
func (c Config) Validate() error {
	if c.BootBank.Size == 0 || c.UpdateBank.Size == 0 || c.UpdateBank.Size > c.BootBank.Size {
		return &bankSizingError{boot: c.BootBank, update: c.UpdateBank}
	}
	return nil
}

// LinkerConfig carries the inputs to the linker-text derivation that are
// not already part of Config.
type LinkerConfig struct {
	FlashOrigin Address
	RAMOrigin   Address
	// HasRAMState selects whether a tail region of RAM is reserved for
	// the RAM-backed state record.
	HasRAMState bool
}
