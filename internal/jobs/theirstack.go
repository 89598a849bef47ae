package jobs

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/pkg/theirstack"
)

// TheirStackSource searches the TheirStack jobs API.
type TheirStackSource struct {
	client theirstack.Client
	limit  int
}

// NewTheirStackSource wraps client. limit caps results per page.
func NewTheirStackSource(client theirstack.Client, limit int) *TheirStackSource {
	return &TheirStackSource{client: client, limit: limit}
}

func (s *TheirStackSource) Name() string { return SourceTheirStack }

func (s *TheirStackSource) Fetch(ctx context.Context, q Query) (Batch, error) {
	limit := s.limit
	if limit <= 0 {
		limit = q.PageSize
	}
	req := theirstack.SearchRequest{
		// TheirStack pages are zero-based.
		Page:               q.Page - 1,
		Limit:              limit,
		Remote:             q.Filters.Remote,
		PostedAtMaxAgeDays: q.Filters.PostedWithinDays,
		OrderBy:            []theirstack.Order{{Desc: true, Field: "date_posted"}},
	}
	if req.PostedAtMaxAgeDays == 0 {
		req.PostedAtMaxAgeDays = 30
	}
	if v := strings.TrimSpace(q.Filters.Search); v != "" {
		req.JobTitleOr = []string{v}
	}
	if v := strings.TrimSpace(q.Filters.Location); v != "" {
		req.JobLocationPatternOr = []string{v}
	}
	if v := strings.TrimSpace(q.Filters.JobType); v != "" {
		req.EmploymentStatusesOr = []string{strings.ReplaceAll(strings.ToLower(v), "-", "_")}
	}

	resp, err := s.client.SearchJobs(ctx, req)
	if err != nil {
		return Batch{}, eris.Wrap(err, "theirstack: search jobs")
	}

	jobs := make([]model.Job, 0, len(resp.Data))
	for _, j := range resp.Data {
		jobs = append(jobs, fromTheirStack(j))
	}
	return Batch{Jobs: jobs, Total: resp.Metadata.TotalResults}, nil
}

func fromTheirStack(j theirstack.Job) model.Job {
	location := j.Location
	if location == "" {
		location = j.LongLocation
	}
	applyURL := j.FinalURL
	if applyURL == "" {
		applyURL = j.URL
	}
	var jobType string
	if len(j.EmploymentStatuses) > 0 {
		jobType = j.EmploymentStatuses[0]
	}
	return model.Job{
		ID:             "theirstack-" + strconv.FormatInt(j.ID, 10),
		Title:          j.JobTitle,
		Company:        j.Company,
		Location:       location,
		Remote:         j.Remote,
		JobType:        jobType,
		SalaryMin:      roundSalary(j.MinAnnualSalary),
		SalaryMax:      roundSalary(j.MaxAnnualSalary),
		Description:    j.Description,
		ApplicationURL: applyURL,
		PostedAt:       j.DatePosted,
		Source:         SourceTheirStack,
	}
}

func roundSalary(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(*v + 0.5)
	return &n
}
