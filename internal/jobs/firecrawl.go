package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/pkg/firecrawl"
)

const extractPrompt = "Extract every job posting listed on this page. " +
	"Return title, company, location, whether it is remote, job type, salary range, " +
	"a short description and the application URL for each."

var jobListSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"jobs": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":           map[string]any{"type": "string"},
					"company":         map[string]any{"type": "string"},
					"location":        map[string]any{"type": "string"},
					"remote":          map[string]any{"type": "boolean"},
					"job_type":        map[string]any{"type": "string"},
					"salary_min":      map[string]any{"type": "number"},
					"salary_max":      map[string]any{"type": "number"},
					"description":     map[string]any{"type": "string"},
					"application_url": map[string]any{"type": "string"},
					"posted_at":       map[string]any{"type": "string"},
				},
				"required": []string{"title", "company"},
			},
		},
	},
}

// extractedJob is one entry of the JSON extraction result.
type extractedJob struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	Remote         bool     `json:"remote"`
	JobType        string   `json:"job_type"`
	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	Description    string   `json:"description"`
	ApplicationURL string   `json:"application_url"`
	PostedAt       string   `json:"posted_at"`
}

// FirecrawlSource scrapes configured job boards through Firecrawl and lets
// it extract listings as JSON. Board URLs may contain {search}, {location}
// and {page} placeholders.
type FirecrawlSource struct {
	client firecrawl.Client
	boards []string
}

// NewFirecrawlSource wraps client for the given board URL templates.
func NewFirecrawlSource(client firecrawl.Client, boards []string) *FirecrawlSource {
	return &FirecrawlSource{client: client, boards: boards}
}

func (s *FirecrawlSource) Name() string { return SourceFirecrawl }

func (s *FirecrawlSource) Fetch(ctx context.Context, q Query) (Batch, error) {
	if len(s.boards) == 0 {
		return Batch{}, eris.New("firecrawl: no job boards configured")
	}

	var (
		mu      sync.Mutex
		perURL  = make([][]model.Job, len(s.boards))
		lastErr error
		okCount int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, tmpl := range s.boards {
		target := expandBoardURL(tmpl, q)
		g.Go(func() error {
			jobs, err := s.scrape(gCtx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				zap.L().Debug("firecrawl: board scrape failed",
					zap.String("url", target),
					zap.Error(err),
				)
				return nil
			}
			okCount++
			perURL[i] = jobs
			return nil
		})
	}
	_ = g.Wait()

	if okCount == 0 {
		return Batch{}, eris.Wrap(lastErr, "firecrawl: all job boards failed")
	}

	var jobs []model.Job
	for _, page := range perURL {
		jobs = append(jobs, page...)
	}
	jobs = filterJobs(jobs, q.Filters)
	return Batch{Jobs: jobs, Total: len(jobs)}, nil
}

func (s *FirecrawlSource) scrape(ctx context.Context, target string) ([]model.Job, error) {
	resp, err := s.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             target,
		Formats:         []string{"json"},
		OnlyMainContent: true,
		JSONOptions: &firecrawl.JSONOptions{
			Prompt: extractPrompt,
			Schema: jobListSchema,
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape of %s reported failure", target)
	}

	var payload struct {
		Jobs []extractedJob `json:"jobs"`
	}
	if len(resp.Data.JSON) > 0 {
		if err := json.Unmarshal(resp.Data.JSON, &payload); err != nil {
			return nil, eris.Wrapf(err, "firecrawl: decode extraction for %s", target)
		}
	}

	jobs := make([]model.Job, 0, len(payload.Jobs))
	for i, ej := range payload.Jobs {
		if strings.TrimSpace(ej.Title) == "" || strings.TrimSpace(ej.Company) == "" {
			continue
		}
		applyURL := ej.ApplicationURL
		if applyURL == "" {
			applyURL = target
		}
		jobs = append(jobs, model.Job{
			ID:             fmt.Sprintf("firecrawl-%s-%d", hostOf(target), i),
			Title:          ej.Title,
			Company:        ej.Company,
			Location:       ej.Location,
			Remote:         ej.Remote,
			JobType:        ej.JobType,
			SalaryMin:      roundSalary(ej.SalaryMin),
			SalaryMax:      roundSalary(ej.SalaryMax),
			Description:    ej.Description,
			ApplicationURL: applyURL,
			PostedAt:       ej.PostedAt,
			Source:         SourceFirecrawl,
		})
	}
	return jobs, nil
}

func expandBoardURL(tmpl string, q Query) string {
	return strings.NewReplacer(
		"{search}", url.QueryEscape(q.Filters.Search),
		"{location}", url.QueryEscape(q.Filters.Location),
		"{page}", fmt.Sprint(q.Page),
	).Replace(tmpl)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "board"
	}
	return u.Host
}

// filterJobs applies the filters a scraped board could not apply itself.
func filterJobs(jobs []model.Job, f model.JobFilters) []model.Job {
	if f.Remote == nil && f.JobType == "" {
		return jobs
	}
	out := jobs[:0]
	for _, j := range jobs {
		if f.Remote != nil && j.Remote != *f.Remote {
			continue
		}
		if f.JobType != "" && j.JobType != "" && !strings.EqualFold(j.JobType, f.JobType) {
			continue
		}
		out = append(out, j)
	}
	return out
}
