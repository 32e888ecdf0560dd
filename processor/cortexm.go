//go:build tinygo

package processor

/*
#include <stdint.h>

// moonboot_set_vtor relocates the vector table before jumping into a
// freshly swapped-in image, matching cortex_m::peripheral::SCB::vtor on
// the original firmware.
static inline void moonboot_set_vtor(uint32_t addr) {
    volatile uint32_t *vtor = (volatile uint32_t *)(0xE000ED08UL);
    *vtor = addr;
}

// moonboot_jump loads the image's initial stack pointer and reset
// handler from its vector table (the first two words at addr) and
// branches to it, the standard Cortex-M "bootload" sequence.
static inline void moonboot_jump(uint32_t addr) {
    uint32_t sp = *(volatile uint32_t *)(addr + 0);
    uint32_t pc = *(volatile uint32_t *)(addr + 4);
    __asm__ volatile (
        "msr msp, %0 \n"
        "bx  %1 \n"
        :: "r" (sp), "r" (pc)
    );
}
*/
import "C"

import "openenterprise/moonboot/hardware"

// CortexM is the Processor adapter for ARM Cortex-M targets: it
// relocates the vector table and branches directly into the image at
// the given address, rather than asking the bootrom for an OS-level
// reboot (which only understands its own fixed partition table, not
// moonboot's bank layout).
type CortexM struct{}

func (CortexM) Setup(hardware.Config) {}

func (CortexM) DoJump(addr hardware.Address) {
	C.moonboot_set_vtor(C.uint32_t(addr))
	C.moonboot_jump(C.uint32_t(addr))
}
