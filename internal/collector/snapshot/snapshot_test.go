package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stonks/internal/collector"
	"github.com/newthinker/stonks/internal/core"
	"github.com/newthinker/stonks/internal/storage/archive"
)

func newStore(t *testing.T) *archive.SeriesStore {
	t.Helper()
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return archive.NewSeriesStore(fs)
}

func TestSnapshot_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Snapshot)(nil)
}

func TestSnapshot_FetchHistory(t *testing.T) {
	store := newStore(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	saved := core.NewSeries("NVDA", core.Period6Mo, "polygon", []core.Bar{
		{Date: day, Open: 860, High: 870, Low: 850, Close: 864, Volume: 5e7},
	})
	require.NoError(t, store.Save(context.Background(), saved))

	s, err := New(store).FetchHistory(context.Background(),
		collector.Request{Symbol: "NVDA", Period: core.Period6Mo})
	require.NoError(t, err)

	assert.Equal(t, "snapshot", s.Source)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 864.0, s.Bars[0].Close)
}

func TestSnapshot_Missing(t *testing.T) {
	_, err := New(newStore(t)).FetchHistory(context.Background(),
		collector.Request{Symbol: "NVDA", Period: core.Period1Y})
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.True(t, core.IsRecoverable(err))
}

func TestSnapshot_InvalidSymbol(t *testing.T) {
	_, err := New(newStore(t)).FetchHistory(context.Background(),
		collector.Request{Symbol: "a/b", Period: core.Period1Y})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
