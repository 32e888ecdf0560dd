// Package linker derives the text of a linker directive block from a
// device's bank layout: a pure function from (Config, LinkerConfig) to
// the MEMORY regions and state symbols a build needs, called from a
// build-time helper (see cmd/linkergen) and written to a file.
package linker

import (
	"fmt"
	"strings"

	"openenterprise/moonboot/hardware"
)

// Sizes of the two header fields preceding the state payload in the
// RAM-state layout (§4.5): a CRC word and a length word.
const (
	crcFieldSize = 4
	lenFieldSize = 4
)

// GenerateBootloaderScript renders the MEMORY block for the resident
// bootloader image, whose FLASH region is config.BootloaderBank.
func GenerateBootloaderScript(config hardware.Config, lc hardware.LinkerConfig, stateSerializedMaxSize uint32) string {
	return generate(config, lc, config.BootloaderBank, stateSerializedMaxSize)
}

// GenerateApplicationScript renders the MEMORY block for the bootable
// application image, whose FLASH region is config.BootBank.
func GenerateApplicationScript(config hardware.Config, lc hardware.LinkerConfig, stateSerializedMaxSize uint32) string {
	return generate(config, lc, config.BootBank, stateSerializedMaxSize)
}

func generate(config hardware.Config, lc hardware.LinkerConfig, flashBank hardware.Bank, stateSize uint32) string {
	var b strings.Builder

	b.WriteString("MEMORY\n{\n")
	fmt.Fprintf(&b, "  FLASH : ORIGIN = 0x%08X, LENGTH = 0x%X\n",
		uint32(lc.FlashOrigin)+uint32(flashBank.Location), uint32(flashBank.Size))

	ramOrigin := uint32(lc.RAMOrigin) + uint32(config.RAMBank.Location)
	ramLength := uint32(config.RAMBank.Size)
	if lc.HasRAMState {
		ramLength -= stateSize + crcFieldSize + lenFieldSize
	}
	fmt.Fprintf(&b, "  RAM : ORIGIN = 0x%08X, LENGTH = 0x%X\n", ramOrigin, ramLength)

	if lc.HasRAMState {
		stateOrigin := ramOrigin + ramLength
		stateLength := stateSize + crcFieldSize + lenFieldSize
		fmt.Fprintf(&b, "  MOONBOOT_STATE : ORIGIN = 0x%08X, LENGTH = 0x%X\n", stateOrigin, stateLength)
	}
	b.WriteString("}\n\n")

	if lc.HasRAMState {
		b.WriteString("_moonboot_state_crc_start = ORIGIN(MOONBOOT_STATE);\n")
		b.WriteString("_moonboot_state_len_start = ORIGIN(MOONBOOT_STATE) + 0x4;\n")
		b.WriteString("_moonboot_state_data_start = ORIGIN(MOONBOOT_STATE) + 0x8;\n\n")
	}

	b.WriteString("PROVIDE(_moonboots_pre_jump = __moonboots_default_pre_jump);\n")
	return b.String()
}
