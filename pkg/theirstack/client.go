package theirstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the TheirStack v1 API.
const defaultBaseURL = "https://api.theirstack.com/v1"

// Client defines the TheirStack API operations.
type Client interface {
	SearchJobs(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the body for POST /jobs/search.
type SearchRequest struct {
	Page                 int      `json:"page"`
	Limit                int      `json:"limit"`
	JobTitleOr           []string `json:"job_title_or,omitempty"`
	JobLocationPatternOr []string `json:"job_location_pattern_or,omitempty"`
	Remote               *bool    `json:"remote,omitempty"`
	EmploymentStatusesOr []string `json:"employment_statuses_or,omitempty"`
	PostedAtMaxAgeDays   int      `json:"posted_at_max_age_days,omitempty"`
	OrderBy              []Order  `json:"order_by,omitempty"`
}

// Order is a single sort clause.
type Order struct {
	Desc  bool   `json:"desc"`
	Field string `json:"field"`
}

// SearchResponse is the response from POST /jobs/search.
type SearchResponse struct {
	Metadata Metadata `json:"metadata"`
	Data     []Job    `json:"data"`
}

// Metadata carries result counts.
type Metadata struct {
	TotalResults int `json:"total_results"`
}

// Job is one posting as returned by TheirStack.
type Job struct {
	ID                 int64    `json:"id"`
	JobTitle           string   `json:"job_title"`
	Company            string   `json:"company"`
	Location           string   `json:"location"`
	LongLocation       string   `json:"long_location"`
	Remote             bool     `json:"remote"`
	Hybrid             bool     `json:"hybrid"`
	EmploymentStatuses []string `json:"employment_statuses"`
	MinAnnualSalary    *float64 `json:"min_annual_salary"`
	MaxAnnualSalary    *float64 `json:"max_annual_salary"`
	Description        string   `json:"description"`
	URL                string   `json:"url"`
	FinalURL           string   `json:"final_url"`
	DatePosted         string   `json:"date_posted"`
}

// APIError is returned when TheirStack responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("theirstack: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new TheirStack client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchJobs(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "theirstack: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/search", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "theirstack: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "theirstack: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "theirstack: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out SearchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "theirstack: decode response")
	}
	return &out, nil
}
