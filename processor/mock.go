package processor

import "openenterprise/moonboot/hardware"

// Mock is a Processor that records calls instead of touching hardware,
// for use in boot/manager tests.
type Mock struct {
	SetupCalls []hardware.Config
	Jumps      []hardware.Address
}

func (m *Mock) Setup(config hardware.Config) {
	m.SetupCalls = append(m.SetupCalls, config)
}

func (m *Mock) DoJump(addr hardware.Address) {
	m.Jumps = append(m.Jumps, addr)
}

// LastJump returns the most recent jump target and whether any jump
// occurred.
func (m *Mock) LastJump() (hardware.Address, bool) {
	if len(m.Jumps) == 0 {
		return 0, false
	}
	return m.Jumps[len(m.Jumps)-1], true
}
