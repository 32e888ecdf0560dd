// Command linkergen renders a GNU ld MEMORY block and the moonboot
// state symbols for either the bootloader or application image, given
// a device's flash/RAM layout, and writes it to a file (or stdout) for
// the build to INCLUDE from its own linker script.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/linker"
	"openenterprise/moonboot/state"
	"openenterprise/moonboot/version"
)

func main() {
	kind := flag.String("kind", "application", "image kind: \"application\" or \"bootloader\"")
	out := flag.String("out", "", "output file (default: stdout)")

	flashOrigin := flag.Uint64("flash-origin", 0x08000000, "flash base address")
	ramOrigin := flag.Uint64("ram-origin", 0x20000000, "RAM base address")
	ramSize := flag.Uint64("ram-size", 0, "RAM region size in bytes")
	ramState := flag.Bool("ram-state", false, "reserve a MOONBOOT_STATE region at the top of RAM")

	bootLocation := flag.Uint64("boot-location", 0, "boot bank offset from flash-origin")
	bootSize := flag.Uint64("boot-size", 0, "boot bank size in bytes")
	bootloaderLocation := flag.Uint64("bootloader-location", 0, "bootloader bank offset from flash-origin")
	bootloaderSize := flag.Uint64("bootloader-size", 0, "bootloader bank size in bytes")

	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("linkergen %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildDate)
		fmt.Printf("marker: %s\n", version.BuildMarker)
		return
	}

	config := hardware.Config{
		BootBank:       hardware.Bank{Location: hardware.Address(*bootLocation), Size: hardware.Address(*bootSize)},
		BootloaderBank: hardware.Bank{Location: hardware.Address(*bootloaderLocation), Size: hardware.Address(*bootloaderSize)},
		RAMBank:        hardware.Bank{Location: 0, Size: hardware.Address(*ramSize)},
	}
	lc := hardware.LinkerConfig{
		FlashOrigin: hardware.Address(*flashOrigin),
		RAMOrigin:   hardware.Address(*ramOrigin),
		HasRAMState: *ramState,
	}

	var script string
	switch *kind {
	case "application":
		script = linker.GenerateApplicationScript(config, lc, state.StateSerializedMaxSize)
	case "bootloader":
		script = linker.GenerateBootloaderScript(config, lc, state.StateSerializedMaxSize)
	default:
		fmt.Fprintf(os.Stderr, "linkergen: unknown -kind %q (want \"application\" or \"bootloader\")\n", *kind)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "linkergen: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if _, err := fmt.Fprint(w, script); err != nil {
		fmt.Fprintf(os.Stderr, "linkergen: %v\n", err)
		os.Exit(1)
	}

	if *out != "" {
		fmt.Fprintf(os.Stderr, "linkergen: wrote %s (%s) to %s\n", *kind, humanize.Bytes(uint64(len(script))), *out)
	}
}
