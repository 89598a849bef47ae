// Package apierr normalizes heterogeneous failures into a single error taxonomy
// with retryability and user-facing messaging.
package apierr

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// Type is the normalized error category.
type Type string

const (
	TypeNetwork        Type = "network"
	TypeAuthentication Type = "authentication"
	TypeAuthorization  Type = "authorization"
	TypeValidation     Type = "validation"
	TypeNotFound       Type = "not_found"
	TypeServer         Type = "server"
	TypeUnknown        Type = "unknown"
)

// ErrTimeout marks an attempt that exceeded its per-request deadline.
var ErrTimeout = eris.New("request timeout")

// ErrOffline is the cause attached to requests short-circuited while offline.
var ErrOffline = eris.New("network offline")

// ErrorResponse is the normalized error envelope returned to callers.
type ErrorResponse struct {
	Type          Type   `json:"type"`
	Message       string `json:"message"`
	UserMessage   string `json:"userMessage"`
	Retryable     bool   `json:"retryable"`
	OriginalError error  `json:"-"`
	QueueID       string `json:"queueId,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ErrorResponse) Unwrap() error {
	return e.OriginalError
}

// MarshalJSON renders OriginalError as its message so the envelope stays
// serializable for logs and HTTP responses.
func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	type alias ErrorResponse
	out := struct {
		alias
		OriginalError string `json:"originalError,omitempty"`
	}{alias: alias(e)}
	if e.OriginalError != nil {
		out.OriginalError = e.OriginalError.Error()
	}
	return json.Marshal(out)
}

// StatusError is a backend error envelope carrying an HTTP status.
type StatusError struct {
	Status  int    `json:"status"`
	Code    string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Body    string `json:"-"`
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, msg)
}

// NewStatusError builds a StatusError from a response status and raw body,
// lifting "error"/"message" fields out of a JSON body when present.
func NewStatusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status, Body: string(body)}
	var envelope struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		se.Message = envelope.Message
		if se.Message == "" {
			se.Message = envelope.Msg
		}
		switch v := envelope.Error.(type) {
		case string:
			se.Code = v
		case map[string]any:
			if m, ok := v["message"].(string); ok && se.Message == "" {
				se.Message = m
			}
		}
	}
	return se
}

// NamedError is implemented by errors that carry a class name, such as the
// remote-function relay errors returned by backend SDKs.
type NamedError interface {
	error
	Name() string
}
