package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/newthinker/stonks/internal/core"
)

// StatusError maps a non-200 provider status onto the acquisition taxonomy.
func StatusError(source string, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.Errorf(core.ErrInvalidCredential, "%s: status %d", source, status)
	case status == http.StatusTooManyRequests:
		return core.Errorf(core.ErrRateLimited, "%s: status %d", source, status)
	case status == http.StatusNotFound:
		return core.Errorf(core.ErrNoData, "%s: status %d", source, status)
	default:
		return core.Errorf(core.ErrSourceUnavailable, "%s: unexpected status %d", source, status)
	}
}

// TransportError classifies a failed request. Errors already carrying an
// acquisition code pass through unchanged.
func TransportError(source string, err error) error {
	var coded *core.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.WrapError(core.ErrSourceUnavailable, fmt.Errorf("%s: timed out: %w", source, err))
	}
	return core.WrapError(core.ErrSourceUnavailable, fmt.Errorf("%s: %w", source, err))
}

// NoData reports an empty result for symbol.
func NoData(source, symbol string, period core.Period) error {
	return core.Errorf(core.ErrNoData, "%s: no rows for %s over %s", source, symbol, period)
}
