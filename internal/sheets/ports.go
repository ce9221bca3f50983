// Package sheets defines the outbound port for reading the raw expense extract.
package sheets

import "context"

type (
	// ExtractSource returns the raw expense table: the first row is the
	// header, every other row is one expense. Cells are rendered as text.
	ExtractSource interface {
		FetchExtract(ctx context.Context) ([][]string, error)
	}

	// Invalidator is implemented by sources that cache, so a forced refresh
	// can bypass the cache.
	Invalidator interface {
		Invalidate()
	}
)
