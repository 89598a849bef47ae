package apierr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/resilience"
)

// User-facing messages per error type.
const (
	msgNetwork        = "Unable to connect. Please check your internet connection and try again."
	msgQueued         = "You're offline. Your change was saved and will be sent automatically when you're back online."
	msgAuthentication = "Your session has expired. Please sign in again."
	msgAuthorization  = "You don't have permission to perform this action."
	msgNotFound       = "The requested resource was not found."
	msgValidation     = "Some of the information provided is invalid. Please review it and try again."
	msgServer         = "Something went wrong on our end. Please try again in a moment."
	msgUnknown        = "An unexpected error occurred. Please try again."
)

var functionErrorNames = map[string]bool{
	"FunctionsFetchError": true,
	"FunctionsRelayError": true,
}

var functionErrorPatterns = []string{
	"failed to send a request to the edge function",
	"edge function returned a relay error",
	"functionsfetcherror",
	"functionsrelayerror",
}

var networkMessagePatterns = []string{
	"network error",
	"failed to fetch",
}

// Classify maps any error shape onto the ErrorResponse taxonomy and logs the
// result. It returns nil for a nil input.
func Classify(v any) *ErrorResponse {
	c := CauseOf(v)
	if !c.Present() {
		return nil
	}

	resp := classify(c)
	if resp.OriginalError == nil {
		resp.OriginalError = c.AsError()
	}

	zap.L().Warn("api error classified",
		zap.String("type", string(resp.Type)),
		zap.String("message", resp.Message),
		zap.Bool("retryable", resp.Retryable),
		zap.Error(resp.OriginalError),
	)
	return resp
}

func classify(c Cause) *ErrorResponse {
	if isFunctionFailure(c) {
		return newResponse(TypeNetwork, c.Message)
	}

	resp := newResponse(TypeUnknown, c.Message)
	if c.Status != 0 {
		resp = fromStatus(c.Status, c.Message)
	}

	// Network failures override any prior classification.
	if isNetworkFailure(c) {
		return newResponse(TypeNetwork, c.Message)
	}
	return resp
}

func fromStatus(status int, message string) *ErrorResponse {
	switch {
	case status == http.StatusUnauthorized:
		return newResponse(TypeAuthentication, message)
	case status == http.StatusForbidden:
		return newResponse(TypeAuthorization, message)
	case status == http.StatusNotFound:
		return newResponse(TypeNotFound, message)
	case status == http.StatusUnprocessableEntity:
		return newResponse(TypeValidation, message)
	case status >= http.StatusInternalServerError:
		return newResponse(TypeServer, message)
	default:
		return newResponse(TypeUnknown, message)
	}
}

func isFunctionFailure(c Cause) bool {
	if functionErrorNames[c.Name] {
		return true
	}
	return containsAny(strings.ToLower(c.Message), functionErrorPatterns)
}

func isNetworkFailure(c Cause) bool {
	if containsAny(strings.ToLower(c.Message), networkMessagePatterns) {
		return true
	}
	if c.Err == nil {
		return false
	}
	if errors.Is(c.Err, ErrTimeout) || errors.Is(c.Err, ErrOffline) || errors.Is(c.Err, context.DeadlineExceeded) {
		return true
	}
	// A status-bearing envelope is a definitive server answer, even when its
	// status is one the retry layer treats as transient.
	if c.Kind == KindEnvelope {
		return false
	}
	return resilience.IsTransient(c.Err)
}

func newResponse(t Type, message string) *ErrorResponse {
	return &ErrorResponse{
		Type:        t,
		Message:     message,
		UserMessage: UserMessage(t),
		Retryable:   t == TypeNetwork || t == TypeServer,
	}
}

// UserMessage returns the human-readable message for an error type.
func UserMessage(t Type) string {
	switch t {
	case TypeNetwork:
		return msgNetwork
	case TypeAuthentication:
		return msgAuthentication
	case TypeAuthorization:
		return msgAuthorization
	case TypeNotFound:
		return msgNotFound
	case TypeValidation:
		return msgValidation
	case TypeServer:
		return msgServer
	default:
		return msgUnknown
	}
}

// Offline builds the network error returned for a request short-circuited
// while offline. A non-empty queueID means the request was deferred.
func Offline(queueID string) *ErrorResponse {
	resp := newResponse(TypeNetwork, ErrOffline.Error())
	resp.OriginalError = ErrOffline
	resp.QueueID = queueID
	if queueID != "" {
		resp.UserMessage = msgQueued
	}
	return resp
}

// OfflineNotQueued builds the error for a mutating request the queue failed
// to persist. It carries no queue id and the plain connection message, and
// its OriginalError matches both ErrOffline and cause.
func OfflineNotQueued(cause error) *ErrorResponse {
	resp := Offline("")
	if cause != nil {
		resp.OriginalError = errors.Join(ErrOffline, cause)
	}
	return resp
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
