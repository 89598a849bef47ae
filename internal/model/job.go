package model

// JobSourceAPI and JobSourceFallback tag where an aggregated listing came from.
const (
	JobSourceAPI      = "api"
	JobSourceFallback = "fallback"
)

// Job is a single listing returned by the aggregation function.
type Job struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Company        string   `json:"company" yaml:"company"`
	Location       string   `json:"location" yaml:"location"`
	Remote         bool     `json:"remote" yaml:"remote"`
	JobType        string   `json:"job_type,omitempty" yaml:"job_type"`
	SalaryMin      *int     `json:"salary_min,omitempty" yaml:"salary_min"`
	SalaryMax      *int     `json:"salary_max,omitempty" yaml:"salary_max"`
	Description    string   `json:"description,omitempty" yaml:"description"`
	Requirements   []string `json:"requirements,omitempty" yaml:"requirements"`
	ApplicationURL string   `json:"application_url,omitempty" yaml:"application_url"`
	PostedAt       string   `json:"posted_at,omitempty" yaml:"posted_at"`
	Source         string   `json:"source" yaml:"source"`
}

// JobFilters narrows an aggregation request.
type JobFilters struct {
	Search           string `json:"search,omitempty"`
	Location         string `json:"location,omitempty"`
	Remote           *bool  `json:"remote,omitempty"`
	JobType          string `json:"job_type,omitempty"`
	PostedWithinDays int    `json:"posted_within_days,omitempty"`
}
