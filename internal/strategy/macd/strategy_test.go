package macd

import (
	"testing"

	"github.com/newthinker/stonks/internal/core"
)

func TestMACD_Signals(t *testing.T) {
	series := &core.Series{
		Bars: make([]core.Bar, 4),
		Indicators: &core.Indicators{
			MACD:       []float64{-1, 0.5, 0.5, 0.2},
			SignalLine: []float64{0, 0.1, 0.5, 0.3},
		},
	}

	got, err := New().Signals(series)
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}

	want := []core.Signal{core.SignalFlat, core.SignalLong, core.SignalFlat, core.SignalFlat}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("signal[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
