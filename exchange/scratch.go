package exchange

import (
	"fmt"
	"log/slog"

	"openenterprise/moonboot/hardware"
	"openenterprise/moonboot/state"
	"openenterprise/moonboot/storage"
)

// Scratch swaps two banks through one or more dedicated scratch pages,
// never leaving a window where both the original A and original B
// content are unavailable somewhere. scratch_index = page_index mod
// len(Pages) selects which scratch page to use, so multiple scratch
// pages can be round-robined.
type Scratch struct {
	Pages    []hardware.Bank
	PageSize uint32
	Logger   *slog.Logger

	buf [MaxInternalPageSize]byte
}

// NewScratch returns a Scratch engine using pages as its round-robin
// scratch pool.
func NewScratch(pages []hardware.Bank, pageSize uint32, logger *slog.Logger) (*Scratch, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("exchange: scratch requires at least one scratch page")
	}
	if pageSize == 0 || pageSize > MaxInternalPageSize {
		return nil, fmt.Errorf("exchange: scratch page size %d must be in (0, %d]", pageSize, MaxInternalPageSize)
	}
	return &Scratch{Pages: pages, PageSize: pageSize, Logger: logger}, nil
}

func (s *Scratch) Exchange(sto storage.Storage, store state.Store, progress state.ExchangeProgress) error {
	if progress.A.Size == 0 || progress.B.Size == 0 || progress.A.Size != progress.B.Size {
		return fmt.Errorf("exchange: scratch requires equal, non-zero bank sizes (a=%d, b=%d)", progress.A.Size, progress.B.Size)
	}
	size := uint32(progress.A.Size)
	if size%s.PageSize != 0 {
		return fmt.Errorf("exchange: scratch requires bank size %d to be a whole multiple of page size %d", size, s.PageSize)
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

	fullPages := size / s.PageSize
	step := progress.Step
	first := true

pages:
	for i := progress.PageIndex; i < fullPages; i++ {
		for {
			// Checkpoint before every sub-step except the very first of
			// the whole call, which is redundant with the caller-supplied
			// progress.
			if !first {
				cp := progress
				cp.PageIndex = i
				cp.Step = step
				if s.Logger != nil {
					s.Logger.Debug("exchange:scratch-checkpoint", slog.Uint64("page_index", uint64(i)), slog.String("step", step.String()))
				}
				if err := store.Write(state.MoonbootState{Update: state.NewExchanging(cp)}); err != nil {
					return stateErr(err)
				}
			}
			first = false

			scratch := s.Pages[i%uint32(len(s.Pages))]
			buf := s.buf[:s.PageSize]

			switch step {
			case state.StepAToScratch:
				if err := sto.ReadAt(uint32(progress.A.Location)+i*s.PageSize, buf); err != nil {
					return storageErr(err)
				}
				if err := sto.WriteAt(uint32(scratch.Location), buf); err != nil {
					return storageErr(err)
				}
				step = state.StepBToA

			case state.StepBToA:
				if err := sto.ReadAt(uint32(progress.B.Location)+i*s.PageSize, buf); err != nil {
					return storageErr(err)
				}
				if err := sto.WriteAt(uint32(progress.A.Location)+i*s.PageSize, buf); err != nil {
					return storageErr(err)
				}
				step = state.StepScratchToB

			case state.StepScratchToB:
				if err := sto.ReadAt(uint32(scratch.Location), buf); err != nil {
					return storageErr(err)
				}
				if err := sto.WriteAt(uint32(progress.B.Location)+i*s.PageSize, buf); err != nil {
					return storageErr(err)
				}
				step = state.StepAToScratch
				continue pages
			}
		}
	}

	final := progress
	final.PageIndex = fullPages
	final.Step = state.StepAToScratch
	if err := store.Write(state.MoonbootState{Update: state.NewExchanging(final)}); err != nil {
		return stateErr(err)
	}
	return nil
}
