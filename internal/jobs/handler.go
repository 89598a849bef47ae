package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AggregatePath is the route of the aggregation function.
const AggregatePath = "/functions/v1/aggregate-jobs"

const maxBodyBytes = 1 << 20

// Routes mounts the aggregation endpoint on r.
func (a *Aggregator) Routes(r chi.Router) {
	r.Post(AggregatePath, a.ServeAggregate)
}

// ServeAggregate handles POST /functions/v1/aggregate-jobs. It always answers
// 200 so clients can render something; failures are carried in the body.
func (a *Aggregator) ServeAggregate(w http.ResponseWriter, r *http.Request) {
	var resp Response
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("jobs: aggregate handler panicked", zap.Any("panic", rec))
			resp = a.FallbackResponse(fmt.Sprintf("internal error: %v", rec))
		}
		writeJSON(w, resp)
	}()

	req, err := decodeRequest(r)
	if err != nil {
		zap.L().Warn("jobs: invalid aggregate request", zap.Error(err))
		resp = a.FallbackResponse("invalid request body: " + err.Error())
		return
	}
	resp = a.Aggregate(r.Context(), req)
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	if len(body) == 0 {
		return req, nil
	}
	err = json.Unmarshal(body, &req)
	return req, err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("jobs: write response", zap.Error(err))
	}
}
