package collector

import (
	"strings"
	"time"

	"github.com/newthinker/stonks/internal/core"
)

// ToYahooSymbol converts internal symbol format to Yahoo format
func ToYahooSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// ExchangeDate is the civil date of a Yahoo bar: the unix timestamp shifted
// by the exchange's UTC offset in seconds. Both Yahoo adapters date bars
// this way so a session keeps its date whichever one served it.
func ExchangeDate(unix, gmtOffset int64) time.Time {
	return core.DateOf(time.Unix(unix+gmtOffset, 0).UTC())
}
