package state

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Store is the persistence interface for MoonbootState: read the
// current record, or write a new one. Each backend has its own
// durability class (see RAMStore and ScratchFlashStore).
type Store interface {
	Read() (MoonbootState, error)
	Write(MoonbootState) error
}

// headerSize is the CRC (4 bytes) plus length (4 bytes) preceding the
// serialized payload in both the RAM and scratch-flash layouts.
const headerSize = 8

// RAMStore persists the update record in a region of RAM laid out as
// [0:4) CRC, [4:8) length, [8:8+N) payload — the layout §4.5's linker
// symbols (_moonboot_state_crc_start, _moonboot_state_len_start,
// _moonboot_state_data_start) name. This host-testable variant operates
// on an ordinary byte slice; NewLinkedRAMStore (tinygo build) binds the
// same logic to the actual linker-reserved region.
//
// Survives soft resets only: if the RAM is powered down, the record is
// gone and the next read sees a CRC mismatch (cold boot).
type RAMStore struct {
	region []byte // len(region) >= headerSize+StateSerializedMaxSize
	logger *slog.Logger
}

// NewRAMStore wraps region directly (no copy). region must be at least
// headerSize+StateSerializedMaxSize bytes.
func NewRAMStore(region []byte, logger *slog.Logger) (*RAMStore, error) {
	if len(region) < headerSize+StateSerializedMaxSize {
		return nil, fmt.Errorf("state: ram region of %d bytes too small, want >= %d", len(region), headerSize+StateSerializedMaxSize)
	}
	return &RAMStore{region: region, logger: logger}, nil
}

func (s *RAMStore) Read() (MoonbootState, error) {
	crcStored := binary.LittleEndian.Uint32(s.region[0:4])
	payload := s.region[headerSize : headerSize+StateSerializedMaxSize]
	checksum := Checksum(payload)

	if s.logger != nil {
		s.logger.Debug("state:ram-read", slog.Uint64("crc_stored", uint64(crcStored)), slog.Uint64("crc_computed", uint64(checksum)))
	}

	if crcStored != checksum {
		if s.logger != nil {
			s.logger.Info("state:crc-mismatch", slog.String("store", "ram"))
		}
		return MoonbootState{Update: NewNone()}, nil
	}
	return Deserialize(payload)
}

func (s *RAMStore) Write(data MoonbootState) error {
	payload, err := Serialize(data)
	if err != nil {
		return fmt.Errorf("state: serialize: %w", err)
	}
	// Payload first, CRC last: a power loss mid-write is detected on
	// the next read as a CRC mismatch rather than a false match.
	copy(s.region[headerSize:headerSize+StateSerializedMaxSize], payload[:])
	binary.LittleEndian.PutUint32(s.region[4:8], uint32(StateSerializedMaxSize))
	binary.LittleEndian.PutUint32(s.region[0:4], Checksum(payload[:]))

	if s.logger != nil {
		s.logger.Info("state:ram-write", slog.String("kind", data.Update.Kind().String()))
	}
	return nil
}
