//go:build tinygo

package storage

/*
#include <stdint.h>
#include <stddef.h>
#include <string.h>

// ============================================================================
// ROM Function Infrastructure (matches the RP2350 bootrom lookup TinyGo
// itself uses internally; duplicated here because moonboot talks to flash
// directly instead of through machine.Flash, which assumes a different
// base offset than a bootloader-managed bank layout wants).
// ============================================================================

#define ROM_TABLE_CODE(c1, c2) ((c1) | ((c2) << 8))

#define BOOTROM_FUNC_TABLE_OFFSET   0x14
#define BOOTROM_WELL_KNOWN_PTR_SIZE 2
#define BOOTROM_TABLE_LOOKUP_OFFSET (BOOTROM_FUNC_TABLE_OFFSET + BOOTROM_WELL_KNOWN_PTR_SIZE)

#define RT_FLAG_FUNC_ARM_SEC 0x0004

typedef void *(*rom_table_lookup_fn)(uint32_t code, uint32_t mask);

__attribute__((always_inline))
static void *rom_func_lookup_inline(uint32_t code) {
    rom_table_lookup_fn rom_table_lookup =
        (rom_table_lookup_fn)(uintptr_t)*(uint16_t*)(BOOTROM_TABLE_LOOKUP_OFFSET);
    return rom_table_lookup(code, RT_FLAG_FUNC_ARM_SEC);
}

#define ROM_FUNC_CONNECT_INTERNAL_FLASH ROM_TABLE_CODE('I', 'F')
#define ROM_FUNC_FLASH_EXIT_XIP         ROM_TABLE_CODE('E', 'X')
#define ROM_FUNC_FLASH_RANGE_ERASE      ROM_TABLE_CODE('R', 'E')
#define ROM_FUNC_FLASH_RANGE_PROGRAM    ROM_TABLE_CODE('R', 'P')
#define ROM_FUNC_FLASH_FLUSH_CACHE      ROM_TABLE_CODE('F', 'C')

#define FLASH_SECTOR_SIZE      4096
#define FLASH_SECTOR_ERASE_CMD 0x20

#define XIP_BASE 0x10000000u

typedef void (*flash_connect_internal_fn)(void);
typedef void (*flash_exit_xip_fn)(void);
typedef void (*flash_range_erase_fn)(uint32_t addr, size_t count, uint32_t block_size, uint8_t block_cmd);
typedef void (*flash_range_program_fn)(uint32_t addr, const uint8_t *data, size_t count);
typedef void (*flash_flush_cache_fn)(void);

// moonboot_flash_write programs data at the given raw flash offset
// (it does not erase; RP2350Flash.WriteAt erases the destination
// sectors before calling it).
static void moonboot_flash_write(uint32_t offset, const uint8_t *data, uint32_t len) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip       = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_program_fn program   = (flash_range_program_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_PROGRAM);
    flash_flush_cache_fn flush       = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !program || !flush) {
        return;
    }

    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");

    connect();
    exit_xip();
    program(offset, data, len);
    flush();

    __asm__ volatile ("msr primask, %0" : : "r" (status));
}

// moonboot_flash_erase erases whole sectors covering [offset, offset+count).
static void moonboot_flash_erase(uint32_t offset, uint32_t count) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip       = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_erase_fn erase       = (flash_range_erase_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_ERASE);
    flash_flush_cache_fn flush       = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !erase || !flush) {
        return;
    }

    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");

    connect();
    exit_xip();
    erase(offset, count, FLASH_SECTOR_SIZE, FLASH_SECTOR_ERASE_CMD);
    flush();

    __asm__ volatile ("msr primask, %0" : : "r" (status));
}

// moonboot_flash_read copies directly out of the XIP-mapped window; flash
// reads need no ROM call since the region is always memory-mapped.
static void moonboot_flash_read(uint32_t offset, uint8_t *data, uint32_t len) {
    memcpy(data, (const void *)(XIP_BASE + offset), len);
}
*/
import "C"

import (
	"errors"
	"unsafe"
)

// Flash geometry constants for the RP2350's internal flash.
const (
	SectorSize = 4096
	PageSize   = 256
)

// verifyChunk bounds the readback buffer used to verify an erase or
// program against what the ROM functions actually committed. Sized to
// the same page cap exchange.MaxInternalPageSize uses; duplicated
// rather than imported, since storage must not depend on exchange.
const verifyChunk = 4096

var (
	// ErrFlashWriteFailed is returned when a readback after
	// moonboot_flash_write doesn't match what was requested: the ROM
	// program call itself can't report failure, so this is the only
	// signal a program fault (e.g. a worn-out sector) surfaces through.
	ErrFlashWriteFailed = errors.New("storage: rp2350 flash write failed verification")
	// ErrFlashEraseFailed is returned when a readback after
	// moonboot_flash_erase finds a byte that isn't 0xFF.
	ErrFlashEraseFailed = errors.New("storage: rp2350 flash erase failed verification")
)

// RP2350Flash is a Storage backed directly by the RP2350's internal
// flash: reads come from the memory-mapped XIP window, writes and
// erases go through the bootrom's ROM functions, the same primitives
// the chip's own USB bootloader uses.
type RP2350Flash struct {
	verifyBuf [verifyChunk]byte
}

// NewRP2350Flash returns a Storage over the whole internal flash unit.
// Offsets passed to ReadAt/WriteAt are raw flash offsets, not XIP
// addresses.
func NewRP2350Flash() *RP2350Flash {
	return &RP2350Flash{}
}

func (f *RP2350Flash) ReadAt(offset uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	C.moonboot_flash_read(C.uint32_t(offset), (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.uint32_t(len(buf)))
	return nil
}

// WriteAt erases the sectors the write touches, then programs the new
// data, verifying both against a readback of the XIP window. Any bytes
// in an erased-but-not-yet-overwritten sector outside
// [offset, offset+len(buf)) read back as 0xFF until a later write.
func (f *RP2350Flash) WriteAt(offset uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	eraseStart := offset &^ (SectorSize - 1)
	eraseEnd := (offset + uint32(len(buf)) + SectorSize - 1) &^ (SectorSize - 1)
	C.moonboot_flash_erase(C.uint32_t(eraseStart), C.uint32_t(eraseEnd-eraseStart))
	if err := f.verifyErased(eraseStart, eraseEnd-eraseStart); err != nil {
		return err
	}

	C.moonboot_flash_write(C.uint32_t(offset), (*C.uint8_t)(unsafe.Pointer(&buf[0])), C.uint32_t(len(buf)))
	return f.verifyWritten(offset, buf)
}

// verifyErased confirms every byte in [offset, offset+length) reads
// back as 0xFF, in verifyChunk-sized pieces so no allocation is needed.
func (f *RP2350Flash) verifyErased(offset, length uint32) error {
	for done := uint32(0); done < length; {
		n := length - done
		if n > verifyChunk {
			n = verifyChunk
		}
		chunk := f.verifyBuf[:n]
		if err := f.ReadAt(offset+done, chunk); err != nil {
			return err
		}
		for _, b := range chunk {
			if b != 0xFF {
				return ErrFlashEraseFailed
			}
		}
		done += n
	}
	return nil
}

// verifyWritten confirms want was actually committed, in verifyChunk-
// sized pieces so no allocation is needed regardless of len(want).
func (f *RP2350Flash) verifyWritten(offset uint32, want []byte) error {
	for done := 0; done < len(want); {
		n := len(want) - done
		if n > verifyChunk {
			n = verifyChunk
		}
		chunk := f.verifyBuf[:n]
		if err := f.ReadAt(offset+uint32(done), chunk); err != nil {
			return err
		}
		for i, b := range chunk {
			if b != want[done+i] {
				return ErrFlashWriteFailed
			}
		}
		done += n
	}
	return nil
}
