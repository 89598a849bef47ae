package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/internal/resilience"
)

// Defaults for Aggregator.
const (
	DefaultPageSize      = 10
	DefaultSourceTimeout = 10 * time.Second
)

// DefaultSources is used when a request names none.
var DefaultSources = []string{SourceTheirStack, SourceFirecrawl}

// Request is the body of an aggregation call.
type Request struct {
	Page    int              `json:"page,omitempty"`
	Filters model.JobFilters `json:"filters"`
	Sources []string         `json:"sources,omitempty"`
}

// SourceError reports a source that contributed nothing.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Response is the aggregated, deduplicated listing.
type Response struct {
	Jobs       []model.Job   `json:"jobs"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Source     string        `json:"source"`
	Errors     []SourceError `json:"errors,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Aggregator fans a request out to its sources.
type Aggregator struct {
	sources  map[string]Source
	breakers *resilience.ServiceBreakers
	timeout  time.Duration
	pageSize int
	defaults []string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSourceTimeout bounds each source call.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithPageSize sets the page size used for total_pages.
func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithDefaultSources sets the sources queried when a request names none.
func WithDefaultSources(names []string) Option {
	return func(a *Aggregator) {
		if len(names) > 0 {
			a.defaults = names
		}
	}
}

// WithBreakers shares a breaker registry, for example with the status endpoint.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(a *Aggregator) {
		if sb != nil {
			a.breakers = sb
		}
	}
}

// NewAggregator creates an Aggregator over sources, keyed by Source.Name.
func NewAggregator(sources []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:  make(map[string]Source, len(sources)),
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
		timeout:  DefaultSourceTimeout,
		pageSize: DefaultPageSize,
		defaults: DefaultSources,
	}
	for _, s := range sources {
		a.sources[s.Name()] = s
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Breakers exposes the per-source circuit breakers.
func (a *Aggregator) Breakers() *resilience.ServiceBreakers { return a.breakers }

// PageSize reports the configured page size.
func (a *Aggregator) PageSize() int { return a.pageSize }

type sourceResult struct {
	batch Batch
	err   error
}

// Aggregate queries every requested source concurrently, merges and
// deduplicates their listings and falls back to the static dataset when
// nothing came back. It never fails; per-source failures are listed in
// Response.Errors.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) Response {
	page := req.Page
	if page < 1 {
		page = 1
	}
	names := req.Sources
	if len(names) == 0 {
		names = a.defaults
	}

	results := make([]sourceResult, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			results[i] = a.fetch(gCtx, name, Query{Filters: req.Filters, Page: page, PageSize: a.pageSize})
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []model.Job
		errs   []SourceError
	)
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, SourceError{Source: names[i], Error: r.err.Error()})
			zap.L().Warn("jobs: source failed",
				zap.String("source", names[i]),
				zap.Error(r.err),
			)
			continue
		}
		merged = append(merged, r.batch.Jobs...)
	}
	merged = Dedupe(merged)

	if len(merged) == 0 {
		resp := a.fallback()
		resp.Errors = errs
		zap.L().Info("jobs: serving fallback dataset",
			zap.Strings("sources", names),
			zap.Int("source_errors", len(errs)),
		)
		return resp
	}

	return Response{
		Jobs:       merged,
		Total:      len(merged),
		Page:       page,
		TotalPages: a.totalPages(len(merged)),
		Source:     model.JobSourceAPI,
		Errors:     errs,
	}
}

// FallbackResponse is the response served when aggregation cannot run at all.
func (a *Aggregator) FallbackResponse(reason string) Response {
	resp := a.fallback()
	resp.Error = reason
	return resp
}

func (a *Aggregator) fallback() Response {
	jobs := Fallback()
	return Response{
		Jobs:       jobs,
		Total:      len(jobs),
		Page:       1,
		TotalPages: a.totalPages(len(jobs)),
		Source:     model.JobSourceFallback,
	}
}

func (a *Aggregator) fetch(ctx context.Context, name string, q Query) (res sourceResult) {
	src, ok := a.sources[name]
	if !ok {
		return sourceResult{err: eris.Errorf("unknown source %q", name)}
	}

	defer func() {
		if r := recover(); r != nil {
			res = sourceResult{err: eris.Errorf("source %s panicked: %v", name, r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	batch, err := resilience.ExecuteVal(ctx, a.breakers.Get(name), func(ctx context.Context) (Batch, error) {
		return src.Fetch(ctx, q)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = eris.Wrapf(err, "timed out after %s", a.timeout)
		}
		return sourceResult{err: err}
	}

	zap.L().Debug("jobs: source returned",
		zap.String("source", name),
		zap.Int("jobs", len(batch.Jobs)),
		zap.Int("total", batch.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sourceResult{batch: batch}
}

func (a *Aggregator) totalPages(n int) int {
	return (n + a.pageSize - 1) / a.pageSize
}

// String renders r for logs.
func (r Response) String() string {
	return fmt.Sprintf("%d jobs (page %d/%d, source %s, %d errors)", len(r.Jobs), r.Page, r.TotalPages, r.Source, len(r.Errors))
}
