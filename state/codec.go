package state

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"

	"openenterprise/moonboot/hardware"
)

// Wire layout: a tag byte followed by the largest payload footprint
// (ExchangeProgress, the biggest of the four variant payloads), per the
// spec's own guidance for implementations without algebraic sum types.
// Smaller variants (Bank, UpdateErrorKind) are packed at the front of
// the same payload region and the remainder left zeroed.

type wireBank struct {
	Location   uint32
	Size       uint32
	MemoryUnit uint8
}

const wireBankSize = 9

type wireProgress struct {
	A          wireBank
	B          wireBank
	PageIndex  uint32
	Step       uint8
	Recovering uint8
}

const wireProgressSize = wireBankSize*2 + 4 + 1 + 1 // 24

type wireUpdate struct {
	Kind    uint8
	Payload [wireProgressSize]byte
}

// StateSerializedMaxSize is the deterministic serialized length of any
// MoonbootState value: STATE_SERIALIZED_MAX_SIZE in the linker-text
// contract (§4.5 of the spec this package implements).
const StateSerializedMaxSize = 1 + wireProgressSize

func bankToWire(b hardware.Bank) wireBank {
	return wireBank{Location: uint32(b.Location), Size: uint32(b.Size), MemoryUnit: uint8(b.MemoryUnit)}
}

func wireToBank(w wireBank) hardware.Bank {
	return hardware.Bank{Location: hardware.Address(w.Location), Size: hardware.Address(w.Size), MemoryUnit: hardware.MemoryUnit(w.MemoryUnit)}
}

func progressToWire(p ExchangeProgress) wireProgress {
	recovering := uint8(0)
	if p.Recovering {
		recovering = 1
	}
	return wireProgress{
		A:          bankToWire(p.A),
		B:          bankToWire(p.B),
		PageIndex:  p.PageIndex,
		Step:       uint8(p.Step),
		Recovering: recovering,
	}
}

func wireToProgress(w wireProgress) ExchangeProgress {
	return ExchangeProgress{
		A:          wireToBank(w.A),
		B:          wireToBank(w.B),
		PageIndex:  w.PageIndex,
		Step:       ExchangeStep(w.Step),
		Recovering: w.Recovering != 0,
	}
}

// Serialize produces the fixed-length wire encoding of s.
func Serialize(s MoonbootState) ([StateSerializedMaxSize]byte, error) {
	var out [StateSerializedMaxSize]byte
	var w wireUpdate
	w.Kind = uint8(s.Update.Kind())

	switch s.Update.Kind() {
	case UpdateNone:
		// no payload
	case UpdateRequest, UpdateRevert:
		bank, _ := s.Update.Bank()
		packed, err := restruct.Pack(binary.LittleEndian, bankToWire(bank))
		if err != nil {
			return out, fmt.Errorf("state: pack bank payload: %w", err)
		}
		copy(w.Payload[:], packed)
	case UpdateExchanging:
		progress, _ := s.Update.Progress()
		packed, err := restruct.Pack(binary.LittleEndian, progressToWire(progress))
		if err != nil {
			return out, fmt.Errorf("state: pack progress payload: %w", err)
		}
		copy(w.Payload[:], packed)
	case UpdateErrorState:
		kind, _ := s.Update.ErrorKind()
		w.Payload[0] = uint8(kind)
	default:
		return out, fmt.Errorf("state: unknown update kind %d", s.Update.Kind())
	}

	packed, err := restruct.Pack(binary.LittleEndian, w)
	if err != nil {
		return out, fmt.Errorf("state: pack update: %w", err)
	}
	copy(out[:], packed)
	return out, nil
}

// Deserialize reverses Serialize; deserialize(serialize(s)) == s for
// every MoonbootState value.
func Deserialize(data []byte) (MoonbootState, error) {
	if len(data) < StateSerializedMaxSize {
		return MoonbootState{}, fmt.Errorf("state: short record: got %d bytes, want %d", len(data), StateSerializedMaxSize)
	}
	var w wireUpdate
	if err := restruct.Unpack(data[:StateSerializedMaxSize], binary.LittleEndian, &w); err != nil {
		return MoonbootState{}, fmt.Errorf("state: unpack update: %w", err)
	}

	switch UpdateKind(w.Kind) {
	case UpdateNone:
		return MoonbootState{Update: NewNone()}, nil
	case UpdateRequest:
		var wb wireBank
		if err := restruct.Unpack(w.Payload[:wireBankSize], binary.LittleEndian, &wb); err != nil {
			return MoonbootState{}, fmt.Errorf("state: unpack request bank: %w", err)
		}
		return MoonbootState{Update: NewRequest(wireToBank(wb))}, nil
	case UpdateRevert:
		var wb wireBank
		if err := restruct.Unpack(w.Payload[:wireBankSize], binary.LittleEndian, &wb); err != nil {
			return MoonbootState{}, fmt.Errorf("state: unpack revert bank: %w", err)
		}
		return MoonbootState{Update: NewRevert(wireToBank(wb))}, nil
	case UpdateExchanging:
		var wp wireProgress
		if err := restruct.Unpack(w.Payload[:], binary.LittleEndian, &wp); err != nil {
			return MoonbootState{}, fmt.Errorf("state: unpack progress: %w", err)
		}
		return MoonbootState{Update: NewExchanging(wireToProgress(wp))}, nil
	case UpdateErrorState:
		return MoonbootState{Update: NewError(UpdateErrorKind(w.Payload[0]))}, nil
	default:
		return MoonbootState{}, fmt.Errorf("state: unknown wire kind %d", w.Kind)
	}
}
