package state

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/storage"
)

// ScratchFlashStore persists the update record to a dedicated flash
// region using the same [crc][length][payload] layout as RAMStore, so
// it survives power loss rather than only soft resets.
type ScratchFlashStore struct {
	storage storage.Storage
	offset  hardware.Address
	logger  *slog.Logger
}

// NewScratchFlashStore returns a Store writing the record at offset
// within storage.
func NewScratchFlashStore(sto storage.Storage, offset hardware.Address, logger *slog.Logger) *ScratchFlashStore {
	return &ScratchFlashStore{storage: sto, offset: offset, logger: logger}
}

func (s *ScratchFlashStore) Read() (MoonbootState, error) {
	var header [headerSize]byte
	if err := s.storage.ReadAt(uint32(s.offset), header[:]); err != nil {
		return MoonbootState{}, fmt.Errorf("state: scratch-flash: read header: %w", err)
	}
	crcStored := binary.LittleEndian.Uint32(header[0:4])

	payload := make([]byte, StateSerializedMaxSize)
	if err := s.storage.ReadAt(uint32(s.offset)+headerSize, payload); err != nil {
		return MoonbootState{}, fmt.Errorf("state: scratch-flash: read payload: %w", err)
	}
	checksum := Checksum(payload)

	if crcStored != checksum {
		if s.logger != nil {
			s.logger.Info("state:crc-mismatch", slog.String("store", "scratch-flash"))
		}
		return MoonbootState{Update: NewNone()}, nil
	}
	return Deserialize(payload)
}

func (s *ScratchFlashStore) Write(data MoonbootState) error {
	payload, err := Serialize(data)
	if err != nil {
		return fmt.Errorf("state: serialize: %w", err)
	}

	// Payload first, CRC last, matching RAMStore's torn-write semantics.
	if err := s.storage.WriteAt(uint32(s.offset)+headerSize, payload[:]); err != nil {
		return fmt.Errorf("state: scratch-flash: write payload: %w", err)
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[4:8], uint32(StateSerializedMaxSize))
	binary.LittleEndian.PutUint32(header[0:4], Checksum(payload[:]))
	if err := s.storage.WriteAt(uint32(s.offset), header[:]); err != nil {
		return fmt.Errorf("state: scratch-flash: write header: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("state:scratch-flash-write", slog.String("kind", data.Update.Kind().String()))
	}
	return nil
}
