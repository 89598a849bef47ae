package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayError struct{ msg string }

func (e *relayError) Error() string { return e.msg }
func (e *relayError) Name() string  { return "FunctionsRelayError" }

type objWithMessage struct{}

func (objWithMessage) Message() string { return "Failed to fetch" }

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	var resp *ErrorResponse
	assert.Nil(t, Classify(resp))
}

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantType  Type
		retryable bool
	}{
		{"unauthorized", 401, TypeAuthentication, false},
		{"forbidden", 403, TypeAuthorization, false},
		{"not found", 404, TypeNotFound, false},
		{"unprocessable", 422, TypeValidation, false},
		{"internal", 500, TypeServer, true},
		{"bad gateway", 502, TypeServer, true},
		{"unavailable", 503, TypeServer, true},
		{"bad request", 400, TypeUnknown, false},
		{"rate limited", 429, TypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Classify(&StatusError{Status: tt.status, Message: "boom"})
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.retryable, resp.Retryable)
			assert.Equal(t, UserMessage(tt.wantType), resp.UserMessage)
		})
	}
}

func TestClassify_AuthenticationMessage(t *testing.T) {
	resp := Classify(&StatusError{Status: 401})
	assert.Equal(t, "Your session has expired. Please sign in again.", resp.UserMessage)
}

func TestClassify_WrappedStatusError(t *testing.T) {
	err := eris.Wrap(&StatusError{Status: 404, Message: "job not found"}, "load job")
	resp := Classify(err)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Contains(t, resp.Message, "job not found")
	assert.ErrorIs(t, resp, resp.OriginalError)
}

func TestClassify_FunctionFailure(t *testing.T) {
	t.Run("by name", func(t *testing.T) {
		resp := Classify(&relayError{msg: "relay down"})
		assert.Equal(t, TypeNetwork, resp.Type)
		assert.True(t, resp.Retryable)
	})
	t.Run("by message", func(t *testing.T) {
		resp := Classify("Failed to send a request to the Edge Function")
		assert.Equal(t, TypeNetwork, resp.Type)
	})
}

func TestClassify_NetworkMessageOverridesStatus(t *testing.T) {
	resp := Classify(&StatusError{Status: 403, Message: "Network Error"})
	assert.Equal(t, TypeNetwork, resp.Type)
	assert.True(t, resp.Retryable)
}

func TestClassify_Strings(t *testing.T) {
	assert.Equal(t, TypeNetwork, Classify("Failed to fetch").Type)
	assert.Equal(t, TypeNetwork, Classify("Network Error").Type)
	assert.Equal(t, TypeUnknown, Classify("something odd").Type)
}

func TestClassify_Objects(t *testing.T) {
	assert.Equal(t, TypeNetwork, Classify(objWithMessage{}).Type)
	assert.Equal(t, TypeValidation, Classify(map[string]any{"status": float64(422), "message": "bad email"}).Type)
	assert.Equal(t, TypeUnknown, Classify(42).Type)
}

func TestClassify_GoTransportErrors(t *testing.T) {
	assert.Equal(t, TypeNetwork, Classify(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)).Type)
	assert.Equal(t, TypeNetwork, Classify(eris.Wrap(ErrTimeout, "attempt 2")).Type)
	assert.Equal(t, TypeUnknown, Classify(errors.New("invalid input")).Type)
}

func TestClassify_RetryableOnlyForNetworkAndServer(t *testing.T) {
	for _, status := range []int{401, 403, 404, 422, 500} {
		resp := Classify(&StatusError{Status: status})
		assert.Equal(t, resp.Type == TypeNetwork || resp.Type == TypeServer, resp.Retryable, "status %d", status)
	}
}

func TestOffline(t *testing.T) {
	queued := Offline("q-1")
	assert.Equal(t, TypeNetwork, queued.Type)
	assert.True(t, queued.Retryable)
	assert.Equal(t, "q-1", queued.QueueID)
	assert.ErrorIs(t, queued, ErrOffline)

	get := Offline("")
	assert.Empty(t, get.QueueID)
	assert.Equal(t, msgNetwork, get.UserMessage)

	cause := errors.New("disk full")
	lost := OfflineNotQueued(cause)
	assert.Empty(t, lost.QueueID)
	assert.Equal(t, msgNetwork, lost.UserMessage)
	assert.ErrorIs(t, lost, ErrOffline)
	assert.ErrorIs(t, lost, cause)
}

func TestErrorResponse_MarshalJSON(t *testing.T) {
	resp := Offline("q-9")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "network", out["type"])
	assert.Equal(t, true, out["retryable"])
	assert.Equal(t, "q-9", out["queueId"])
	assert.Equal(t, "network offline", out["originalError"])
	assert.NotEmpty(t, out["userMessage"])
}

func TestNewStatusError(t *testing.T) {
	se := NewStatusError(422, []byte(`{"error":"invalid_input","message":"email is required"}`))
	assert.Equal(t, 422, se.Status)
	assert.Equal(t, "invalid_input", se.Code)
	assert.Equal(t, "email is required", se.Message)
	assert.Equal(t, "HTTP 422: email is required", se.Error())

	plain := NewStatusError(500, []byte("upstream exploded"))
	assert.Equal(t, "HTTP 500: upstream exploded", plain.Error())
}
