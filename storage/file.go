package storage

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// FileStorage simulates a flash device as a regular file, memory-mapped
// for both reads and writes, for host-side use where no real device is
// attached but a persistent-across-process flash image is wanted.
// Nothing else in this module (tests or cmd/linkergen) uses it.
type FileStorage struct {
	f    *os.File
	data mmap.MMap
}

// OpenFileStorage opens (creating if necessary) a file of exactly size
// bytes at path and memory-maps it read/write.
func OpenFileStorage(path string, size int64) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: truncate %s to %d: %w", path, size, err)
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: mmap %s: %w", path, err)
	}
	return &FileStorage{f: f, data: data}, nil
}

func (s *FileStorage) ReadAt(offset uint32, buf []byte) error {
	end := uint64(offset) + uint64(len(buf))
	if end > uint64(len(s.data)) {
		return fmt.Errorf("%w: read [0x%x, 0x%x) exceeds file of 0x%x bytes", ErrOutOfRange, offset, end, len(s.data))
	}
	copy(buf, s.data[offset:end])
	return nil
}

func (s *FileStorage) WriteAt(offset uint32, buf []byte) error {
	end := uint64(offset) + uint64(len(buf))
	if end > uint64(len(s.data)) {
		return fmt.Errorf("%w: write [0x%x, 0x%x) exceeds file of 0x%x bytes", ErrOutOfRange, offset, end, len(s.data))
	}
	copy(s.data[offset:end], buf)
	return nil
}

// Sync flushes the mapped region to disk, simulating a flash write
// actually landing before a simulated power loss is injected.
func (s *FileStorage) Sync() error {
	return s.data.Flush()
}

// Close unmaps and closes the backing file.
func (s *FileStorage) Close() error {
	if err := s.data.Unmap(); err != nil {
		s.f.Close()
		return fmt.Errorf("storage: unmap: %w", err)
	}
	return s.f.Close()
}
