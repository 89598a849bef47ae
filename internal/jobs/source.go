// Package jobs aggregates job listings from several providers into one
// deduplicated, paginated response with a static fallback.
package jobs

import (
	"context"

	"github.com/hirely/hirely-cli/internal/model"
)

// Source names accepted in Request.Sources.
const (
	SourceTheirStack = "theirstack"
	SourceFirecrawl  = "firecrawl"
)

// Query is what a Source is asked for.
type Query struct {
	Filters  model.JobFilters
	Page     int
	PageSize int
}

// Batch is what a Source returned.
type Batch struct {
	Jobs  []model.Job
	Total int
}

// Source fetches one page of listings from a provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (Batch, error)
}
