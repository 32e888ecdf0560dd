package exchange

import (
	"fmt"
	"log/slog"

	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

// Direct swaps two banks page-for-page in place: destructive while in
// flight (page i of A briefly holds nothing of the original A once B has
// been written back and before A's old content is written to B), but
// requires no extra flash region. Resuming after power loss re-runs
// from the last checkpointed page index; this is safe because a single
// page's read-then-write-back pair is assumed atomic with respect to
// the checkpoint write that follows it — see §4.3.1's power-loss note.
type Direct struct {
	PageSize uint32
	Logger   *slog.Logger

	bufA [MaxInternalPageSize]byte
	bufB [MaxInternalPageSize]byte
}

// NewDirect returns a Direct engine with page buffers sized once at
// construction.
func NewDirect(pageSize uint32, logger *slog.Logger) (*Direct, error) {
	if pageSize == 0 || pageSize > MaxInternalPageSize {
		return nil, fmt.Errorf("exchange: direct page size %d must be in (0, %d]", pageSize, MaxInternalPageSize)
	}
	return &Direct{PageSize: pageSize, Logger: logger}, nil
}

func (d *Direct) Exchange(sto storage.Storage, store state.Store, progress state.ExchangeProgress) error {
	if progress.A.Size == 0 || progress.B.Size == 0 || progress.A.Size != progress.B.Size {
		return fmt.Errorf("exchange: direct requires equal, non-zero bank sizes (a=%d, b=%d)", progress.A.Size, progress.B.Size)
	}

	// recovering is true once it's observed true and stays true: a
	// fresh call (store still holds the pre-dispatch Request/Revert
	// record, since boot only writes the dispatch result after this
	// returns) picks it up from store.Read() == Revert; a resumed call
	// (store holds the prior Exchanging checkpoint instead) keeps
	// whatever the caller's checkpoint already carried. Without the OR,
	// re-deriving from store alone on every call would forget
	// Recovering the moment the first checkpoint turns Kind from Revert
	// to Exchanging, undoing the whole point of persisting it.
	last, err := store.Read()
	if err != nil {
		return stateErr(err)
	}
	progress.Recovering = progress.Recovering || last.Update.Kind() == state.UpdateRevert

	size := uint32(progress.A.Size)
	fullPages := size / d.PageSize

	for i := progress.PageIndex; i < fullPages; i++ {
		if err := d.swapPage(sto, uint32(progress.A.Location)+i*d.PageSize, uint32(progress.B.Location)+i*d.PageSize, d.PageSize); err != nil {
			return storageErr(err)
		}

		progress.PageIndex = i
		if d.Logger != nil {
			d.Logger.Debug("exchange:direct-checkpoint", slog.Uint64("page_index", uint64(i)))
		}
		if err := store.Write(state.MoonbootState{Update: state.NewExchanging(progress)}); err != nil {
			return stateErr(err)
		}
	}

	// Trailing partial page: no checkpoint covers it (§4.3.1), but it
	// is still swapped like any other page, not left unmodified.
	if remaining := size - fullPages*d.PageSize; remaining > 0 {
		off := fullPages * d.PageSize
		if err := d.swapPage(sto, uint32(progress.A.Location)+off, uint32(progress.B.Location)+off, remaining); err != nil {
			return storageErr(err)
		}
	}

	return nil
}

func (d *Direct) swapPage(sto storage.Storage, aOffset, bOffset, length uint32) error {
	a := d.bufA[:length]
	b := d.bufB[:length]

	if err := sto.ReadAt(aOffset, a); err != nil {
		return err
	}
	if err := sto.ReadAt(bOffset, b); err != nil {
		return err
	}
	if err := sto.WriteAt(aOffset, b); err != nil {
		return err
	}
	if err := sto.WriteAt(bOffset, a); err != nil {
		return err
	}
	return nil
}
