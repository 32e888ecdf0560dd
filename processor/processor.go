// Package processor provides the Processor adapter contract: the one
// ISA-dependent primitive moonboot depends on but does not implement
// itself.
package processor

import "openenterprise/moonboot/hardware"

// Processor is a thin hardware interface: initial setup and an
// unconditional jump to an image's entry point. DoJump is expected
// never to return on real hardware; it updates the vector-table
// pointer first on architectures that have one, then transfers control.
//
// Test and host implementations are free to return from DoJump so the
// caller (boot.Boot, manager.Manager) can be exercised synchronously;
// see Mock.
type Processor interface {
	Setup(config hardware.Config)
	DoJump(addr hardware.Address)
}
