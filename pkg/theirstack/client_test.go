package theirstack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestSearchJobs(t *testing.T) {
	remote := true
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantJobs   int
		wantTotal  int
		wantErr    bool
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/jobs/search", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req SearchRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, 2, req.Page)
				assert.Equal(t, 10, req.Limit)
				assert.Equal(t, []string{"golang"}, req.JobTitleOr)
				require.NotNil(t, req.Remote)
				assert.True(t, *req.Remote)

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{
					"metadata": {"total_results": 42},
					"data": [
						{"id": 1, "job_title": "Go Engineer", "company": "Acme", "location": "Berlin", "remote": true,
						 "min_annual_salary": 70000, "max_annual_salary": 90000, "url": "https://acme.example/jobs/1",
						 "date_posted": "2026-10-01", "employment_statuses": ["full_time"]},
						{"id": 2, "job_title": "SRE", "company": "Globex"}
					]
				}`))
			},
			wantJobs:  2,
			wantTotal: 42,
		},
		{
			name: "payment required",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
				w.Write([]byte(`{"error":"out of credits"}`))
			},
			wantErr:    true,
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr:    true,
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data": [`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			resp, err := c.SearchJobs(context.Background(), SearchRequest{
				Page:       2,
				Limit:      10,
				JobTitleOr: []string{"golang"},
				Remote:     &remote,
			})

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantStatus != 0 {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Data, tt.wantJobs)
			assert.Equal(t, tt.wantTotal, resp.Metadata.TotalResults)
			assert.Equal(t, "Go Engineer", resp.Data[0].JobTitle)
			require.NotNil(t, resp.Data[0].MinAnnualSalary)
			assert.Equal(t, 70000.0, *resp.Data[0].MinAnnualSalary)
			assert.Nil(t, resp.Data[1].MaxAnnualSalary)
		})
	}
}

func TestSearchJobs_OmitsEmptyFilters(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "remote")
		assert.NotContains(t, raw, "job_title_or")
		assert.NotContains(t, raw, "posted_at_max_age_days")
		w.Write([]byte(`{"metadata":{"total_results":0},"data":[]}`))
	})

	resp, err := c.SearchJobs(context.Background(), SearchRequest{Page: 0, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}
