package tinify

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindAccount
	KindClient
	KindServer
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Error is returned for every failed API call.
type Error struct {
	Kind    Kind
	Message string
	// Type is the "error" field of the response body, e.g. "Unauthorized".
	Type   string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d/%s)", e.Message, e.Status, e.Type)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// newStatusError classifies a non-2xx response.
func newStatusError(message, kind string, status int) *Error {
	k := KindUnknown
	switch {
	case status == 401 || status == 429:
		k = KindAccount
	case status >= 400 && status <= 499:
		k = KindClient
	case status >= 500 && status <= 599:
		k = KindServer
	}
	if message == "" {
		message = "No message was provided"
	}
	return &Error{Kind: k, Message: message, Type: kind, Status: status}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// retryable reports whether one more attempt may succeed.
func retryable(err error) bool {
	return IsKind(err, KindServer) || IsKind(err, KindConnection)
}
