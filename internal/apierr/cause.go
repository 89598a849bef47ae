package apierr

import (
	"errors"
	"fmt"
)

// CauseKind identifies which adapter produced a Cause.
type CauseKind int

const (
	KindNone CauseKind = iota
	KindError
	KindString
	KindEnvelope
	KindObject
)

// Cause is the single normalized shape the classifier switches on.
type Cause struct {
	Kind    CauseKind
	Name    string
	Message string
	Status  int
	Err     error
}

// Messenger is implemented by arbitrary values exposing a message.
type Messenger interface {
	Message() string
}

// CauseOf adapts an error, string, envelope or object into a Cause.
func CauseOf(v any) Cause {
	switch x := v.(type) {
	case nil:
		return Cause{Kind: KindNone}
	case Cause:
		return x
	case *ErrorResponse:
		if x == nil {
			return Cause{Kind: KindNone}
		}
		if x.OriginalError != nil {
			return fromError(x.OriginalError)
		}
		return Cause{Kind: KindError, Message: x.Message, Err: x}
	case error:
		return fromError(x)
	case string:
		return Cause{Kind: KindString, Message: x}
	case StatusError:
		return fromError(&x)
	case map[string]any:
		return fromMap(x)
	case Messenger:
		return Cause{Kind: KindObject, Message: x.Message()}
	case fmt.Stringer:
		return Cause{Kind: KindObject, Message: x.String()}
	default:
		return Cause{Kind: KindObject, Message: fmt.Sprint(x)}
	}
}

func fromError(err error) Cause {
	c := Cause{Kind: KindError, Message: err.Error(), Err: err}

	var se *StatusError
	if errors.As(err, &se) {
		c.Kind = KindEnvelope
		c.Status = se.Status
	}

	var named NamedError
	if errors.As(err, &named) {
		c.Name = named.Name()
	}
	return c
}

func fromMap(m map[string]any) Cause {
	c := Cause{Kind: KindObject}
	if msg, ok := m["message"].(string); ok {
		c.Message = msg
	}
	if name, ok := m["name"].(string); ok {
		c.Name = name
	}
	switch s := m["status"].(type) {
	case int:
		c.Status = s
	case float64:
		c.Status = int(s)
	}
	if c.Status != 0 {
		c.Kind = KindEnvelope
	}
	if c.Message == "" {
		if e, ok := m["error"].(string); ok {
			c.Message = e
		}
	}
	return c
}

// Present reports whether the cause holds anything to classify.
func (c Cause) Present() bool {
	return c.Kind != KindNone
}

// AsError returns the underlying error, synthesizing one for non-error shapes.
func (c Cause) AsError() error {
	if c.Err != nil {
		return c.Err
	}
	if c.Kind == KindNone {
		return nil
	}
	return errors.New(c.Message)
}
