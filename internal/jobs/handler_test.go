package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hirely/hirely-cli/internal/model"
)

func newTestRouter(agg *Aggregator) http.Handler {
	r := chi.NewRouter()
	agg.Routes(r)
	return r
}

func postAggregate(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, AggregatePath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestServeAggregate_OK(t *testing.T) {
	ts := newMockSource(SourceTheirStack)
	ts.On("Fetch", mock.Anything, mock.MatchedBy(func(q Query) bool {
		return q.Page == 2 && q.Filters.Search == "rust"
	})).Return(Batch{Jobs: []model.Job{job("Rust Dev", "Oxide", SourceTheirStack)}}, nil)

	w, resp := postAggregate(t, newTestRouter(NewAggregator([]Source{ts})),
		`{"page":2,"filters":{"search":"rust"},"sources":["theirstack"]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, model.JobSourceAPI, resp.Source)
	assert.Equal(t, 2, resp.Page)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "Oxide", resp.Jobs[0].Company)
}

func TestServeAggregate_SourcesFailStill200(t *testing.T) {
	ts := newMockSource(SourceTheirStack)
	fc := newMockSource(SourceFirecrawl)
	ts.On("Fetch", mock.Anything, mock.Anything).Return(Batch{}, errors.New("HTTP 500"))
	fc.On("Fetch", mock.Anything, mock.Anything).Return(Batch{}, errors.New("HTTP 500"))

	w, resp := postAggregate(t, newTestRouter(NewAggregator([]Source{ts, fc})), `{}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.JobSourceFallback, resp.Source)
	assert.Len(t, resp.Errors, 2)
	assert.Len(t, resp.Jobs, len(Fallback()))
}

func TestServeAggregate_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newMockSource(SourceTheirStack)
	fc := newMockSource(SourceFirecrawl)
	ts.On("Fetch", mock.Anything, mock.MatchedBy(func(q Query) bool { return q.Page == 1 })).
		Return(Batch{Jobs: []model.Job{job("PM", "Acme", SourceTheirStack)}}, nil)
	fc.On("Fetch", mock.Anything, mock.Anything).Return(Batch{}, nil)

	w, resp := postAggregate(t, newTestRouter(NewAggregator([]Source{ts, fc})), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.JobSourceAPI, resp.Source)
	ts.AssertExpectations(t)
	fc.AssertExpectations(t)
}

func TestServeAggregate_InvalidBody(t *testing.T) {
	ts := newMockSource(SourceTheirStack)

	w, resp := postAggregate(t, newTestRouter(NewAggregator([]Source{ts})), `{"page":`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.JobSourceFallback, resp.Source)
	assert.Contains(t, resp.Error, "invalid request body")
	assert.NotEmpty(t, resp.Jobs)
	ts.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestServeAggregate_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, AggregatePath, nil)
	w := httptest.NewRecorder()
	newTestRouter(NewAggregator(nil)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
