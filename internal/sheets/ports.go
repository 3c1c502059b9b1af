package sheets

import (
	"context"
	"errors"
	"strings"

	"pnldash/internal/table"
)

// Errors returned by fetchers. Adapters wrap them with detail, so compare
// with errors.Is.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrRangeNotFound     = errors.New("range not found")
)

// Ports for outbound adapters.
type (
	// TableFetcher reads a raw grid of cells. sourceID names the document;
	// subRange optionally selects a tab or range inside it.
	TableFetcher interface {
		Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error)
	}

	// Invalidator is implemented by fetchers that keep results around.
	Invalidator interface {
		Invalidate(sourceID, subRange string)
		InvalidateAll()
	}
)

// Key identifies a fetch for caching and logging.
func Key(sourceID, subRange string) string {
	return strings.TrimSpace(sourceID) + "!" + strings.TrimSpace(subRange)
}
