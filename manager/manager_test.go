package manager

import (
	"errors"
	"testing"

	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/processor"
	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

func newFixture(t *testing.T) (hardware.Config, storage.Storage, state.Store, *processor.Mock) {
	t.Helper()
	config := hardware.Config{
		BootBank:       hardware.Bank{Location: 0x10000, Size: 0x8000},
		UpdateBank:     hardware.Bank{Location: 0x18000, Size: 0x8000},
		BootloaderBank: hardware.Bank{Location: 0x0, Size: 0x8000},
	}
	sto := storage.NewMemoryStorage(make([]byte, 0x20000))
	region := make([]byte, 8+state.StateSerializedMaxSize)
	store, err := state.NewRAMStore(region, nil)
	if err != nil {
		t.Fatalf("NewRAMStore: %v", err)
	}
	return config, sto, store, &processor.Mock{}
}

func TestNewValidatesBankSizing(t *testing.T) {
	tests := []struct {
		name    string
		config  hardware.Config
		wantErr bool
	}{
		{
			name: "valid",
			config: hardware.Config{
				BootBank:   hardware.Bank{Location: 0x10000, Size: 0x8000},
				UpdateBank: hardware.Bank{Location: 0x18000, Size: 0x8000},
			},
			wantErr: false,
		},
		{
			name: "update larger than boot",
			config: hardware.Config{
				BootBank:   hardware.Bank{Location: 0x10000, Size: 0x4000},
				UpdateBank: hardware.Bank{Location: 0x18000, Size: 0x8000},
			},
			wantErr: true,
		},
		{
			name: "zero update bank",
			config: hardware.Config{
				BootBank:   hardware.Bank{Location: 0x10000, Size: 0x8000},
				UpdateBank: hardware.Bank{Location: 0x18000, Size: 0},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sto := storage.NewMemoryStorage(make([]byte, 0x20000))
			region := make([]byte, 8+state.StateSerializedMaxSize)
			store, err := state.NewRAMStore(region, nil)
			if err != nil {
				t.Fatalf("NewRAMStore: %v", err)
			}
			_, err = New(tc.config, sto, store, &processor.Mock{}, nil, nil)
			if tc.wantErr != (err != nil) {
				t.Fatalf("New() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMarkBootSuccessfulFromNone(t *testing.T) {
	config, sto, store, proc := newFixture(t)
	m, err := New(config, sto, store, proc, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Write(state.MoonbootState{Update: state.NewNone()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.MarkBootSuccessful(); err != nil {
		t.Fatalf("MarkBootSuccessful: %v", err)
	}
	got, _ := store.Read()
	if got.Update.Kind() != state.UpdateNone {
		t.Fatalf("got %v, want None", got.Update.Kind())
	}
}

func TestMarkBootSuccessfulFromRevert(t *testing.T) {
	config, sto, store, proc := newFixture(t)
	m, err := New(config, sto, store, proc, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Write(state.MoonbootState{Update: state.NewRevert(config.UpdateBank)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := m.MarkBootSuccessful(); err != nil {
		t.Fatalf("MarkBootSuccessful: %v", err)
	}
	got, _ := store.Read()
	if got.Update.Kind() != state.UpdateNone {
		t.Fatalf("got %v, want None", got.Update.Kind())
	}
}

func TestMarkBootSuccessfulFromRequestIsErrorWithoutMutation(t *testing.T) {
	config, sto, store, proc := newFixture(t)
	m, err := New(config, sto, store, proc, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seed := state.MoonbootState{Update: state.NewRequest(config.UpdateBank)}
	if err := store.Write(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := m.MarkBootSuccessful(); !errors.Is(err, ErrUpdateQueuedButNotInstalled) {
		t.Fatalf("MarkBootSuccessful() error = %v, want ErrUpdateQueuedButNotInstalled", err)
	}

	got, _ := store.Read()
	if !got.Update.Equal(seed.Update) {
		t.Fatalf("state mutated on error path: got %+v, want %+v", got.Update, seed.Update)
	}
}

func TestUpdateArmsRequestAndJumps(t *testing.T) {
	config, sto, store, proc := newFixture(t)
	m, err := New(config, sto, store, proc, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Write(state.MoonbootState{Update: state.NewNone()}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := m.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Read()
	bank, ok := got.Update.Bank()
	if got.Update.Kind() != state.UpdateRequest || !ok || bank != config.UpdateBank {
		t.Fatalf("got %+v, want Request(%+v)", got.Update, config.UpdateBank)
	}

	jumpTo, ok := proc.LastJump()
	if !ok || jumpTo != config.BootloaderBank.Location {
		t.Fatalf("expected jump to bootloader bank, got %v (ok=%v)", jumpTo, ok)
	}
}

func TestReadWriteUpdateBankBounds(t *testing.T) {
	config, sto, store, proc := newFixture(t)
	m, err := New(config, sto, store, proc, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload := []byte{1, 2, 3, 4}
	if err := m.WriteUpdateBank(0, payload); err != nil {
		t.Fatalf("WriteUpdateBank: %v", err)
	}
	readBack := make([]byte, len(payload))
	if err := m.ReadUpdateBank(0, readBack); err != nil {
		t.Fatalf("ReadUpdateBank: %v", err)
	}
	for i := range payload {
		if readBack[i] != payload[i] {
			t.Fatalf("ReadUpdateBank mismatch at %d: got %d, want %d", i, readBack[i], payload[i])
		}
	}

	if err := m.WriteUpdateBank(uint32(config.UpdateBank.Size-1), make([]byte, 4)); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
