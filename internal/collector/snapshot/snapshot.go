// Package snapshot serves history previously saved to the archive.
package snapshot

import (
	"context"
	"errors"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/storage/archive"
)

// Snapshot implements an offline collector over an archive.SeriesStore.
type Snapshot struct {
	store *archive.SeriesStore
}

// New creates a snapshot collector.
func New(store *archive.SeriesStore) *Snapshot {
	return &Snapshot{store: store}
}

func (s *Snapshot) Name() string {
	return collector.SourceSnapshot
}

func (s *Snapshot) Descriptor() core.Provider {
	return core.Provider{
		Name:        collector.SourceSnapshot,
		Description: "Archived history snapshots (offline)",
	}
}

// FetchHistory loads the archived series for the symbol and period.
func (s *Snapshot) FetchHistory(ctx context.Context, req collector.Request) (*core.Series, error) {
	series, err := s.store.Load(ctx, req.Symbol, req.Period)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return nil, err
	case errors.Is(err, archive.ErrNotFound):
		return nil, core.WrapError(core.ErrNoData, err)
	case err != nil:
		return nil, collector.TransportError(s.Name(), err)
	}
	if series.Len() == 0 {
		return nil, collector.NoData(s.Name(), req.Symbol, req.Period)
	}
	series.Source = s.Name()
	return series, nil
}
