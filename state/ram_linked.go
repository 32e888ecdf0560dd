//go:build tinygo

package state

import (
	"log/slog"
	"unsafe"
)

// The linker script moonboot's own linker package emits (§4.5) reserves
// a CRC word, a length word, and StateSerializedMaxSize bytes of payload
// as one contiguous tail region of RAM, and exports three symbols
// naming their starts. go:linkname binds these Go variables to those
// linker symbols the same way the original firmware's RamState bound to
// the extern "C" statics the linker script provided.
//
//go:linkname moonbootStateCRCStart _moonboot_state_crc_start
var moonbootStateCRCStart uint32

//go:linkname moonbootStateLenStart _moonboot_state_len_start
var moonbootStateLenStart uint32

// NewLinkedRAMStore returns a RAMStore backed by the RAM region the
// linker script reserves, rather than a slice supplied by the caller.
// Because the linker places the CRC word, length word, and payload
// contiguously (see linker.GenerateApplicationScript), a single
// unsafe.Slice spanning from the CRC symbol covers the whole region.
func NewLinkedRAMStore(logger *slog.Logger) (*RAMStore, error) {
	region := unsafe.Slice((*byte)(unsafe.Pointer(&moonbootStateCRCStart)), headerSize+StateSerializedMaxSize)
	return NewRAMStore(region, logger)
}
