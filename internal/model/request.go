package model

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultMaxRetries is the replay ceiling applied when a caller does not set one.
const DefaultMaxRetries = 3

// QueuedRequest is a mutating HTTP request deferred while offline.
type QueuedRequest struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Method string `json:"method"`
	// Body is the encoded payload sent as-is on replay. JSON payloads are
	// stored inline under "body", anything else base64 under "bodyBase64".
	Body       []byte            `json:"-"`
	Headers    map[string]string `json:"headers"`
	Timestamp  int64             `json:"timestamp"` // unix milliseconds
	RetryCount int               `json:"retryCount"`
	MaxRetries int               `json:"maxRetries"`
}

type queuedRequestFields QueuedRequest

type queuedRequestJSON struct {
	queuedRequestFields
	Body       json.RawMessage `json:"body,omitempty"`
	BodyBase64 []byte          `json:"bodyBase64,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r QueuedRequest) MarshalJSON() ([]byte, error) {
	w := queuedRequestJSON{queuedRequestFields: queuedRequestFields(r)}
	switch {
	case len(r.Body) == 0:
	case json.Valid(r.Body) && isCompact(r.Body):
		w.Body = json.RawMessage(r.Body)
	default:
		w.BodyBase64 = r.Body
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *QueuedRequest) UnmarshalJSON(data []byte) error {
	var w queuedRequestJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = QueuedRequest(w.queuedRequestFields)
	switch {
	case len(w.BodyBase64) > 0:
		r.Body = w.BodyBase64
	case len(w.Body) > 0 && string(w.Body) != "null":
		r.Body = []byte(w.Body)
	}
	return nil
}

// isCompact reports whether inlining b would keep it byte-for-byte. The
// encoder compacts raw values and escapes HTML characters inside them.
func isCompact(b []byte) bool {
	if bytes.ContainsAny(b, "<>&\u2028\u2029") {
		return false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return false
	}
	return bytes.Equal(buf.Bytes(), b)
}

// Exhausted reports whether the request has used up its replay budget.
func (r *QueuedRequest) Exhausted() bool {
	return r.RetryCount > r.MaxRetries
}

// IsMutating reports whether method changes server state. Only mutating
// requests are deferred; a stale read replayed later is meaningless.
func IsMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
