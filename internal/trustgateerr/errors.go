// Package trustgateerr defines the error kinds shared across the core
// components, grounded on the sentinel-error convention used throughout
// the upstream domain package this repo was adapted from.
package trustgateerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories the core
// distinguishes between.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	// KindConfig marks invalid service input (bad name, too-frequent check).
	KindConfig
	// KindUpstreamUnreachable marks a network failure, timeout, or TLS failure.
	KindUpstreamUnreachable
	// KindProtocol marks a non-JSON body, invalid JSON-RPC envelope, or an
	// SSE stream that closed without a response event.
	KindProtocol
	// KindMethodNotFound marks JSON-RPC code -32601. Not treated as an
	// error at the capability-listing level; callers may inspect this
	// kind to treat the family as empty instead of failing.
	KindMethodNotFound
	// KindRPC marks any other JSON-RPC error response.
	KindRPC
	// KindNotFound marks an admin lookup of a missing service or snapshot.
	KindNotFound
	// KindConflict marks a duplicate service name.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindUpstreamUnreachable:
		return "UpstreamUnreachable"
	case KindProtocol:
		return "ProtocolError"
	case KindMethodNotFound:
		return "MethodNotFound"
	case KindRPC:
		return "RPCError"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}

// Error is a classified error carrying a Kind plus, for KindRPC and
// KindMethodNotFound, the originating JSON-RPC code.
type Error struct {
	Kind Kind
	Code int
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// New builds an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap builds an Error of the given kind, wrapping a lower-level cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, err: cause}
}

// RPC builds a KindRPC (or KindMethodNotFound, for code -32601) error
// carrying the JSON-RPC error code and message.
func RPC(code int, msg string) *Error {
	kind := KindRPC
	if code == -32601 {
		kind = KindMethodNotFound
	}
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for store lookups, grounded on
// upstream.ErrUpstreamNotFound / ErrDuplicateUpstreamName.
var (
	// ErrServiceNotFound is returned when a service with the given name
	// or id does not exist.
	ErrServiceNotFound = New(KindNotFound, "service not found")
	// ErrSnapshotNotFound is returned when a snapshot lookup comes up empty.
	ErrSnapshotNotFound = New(KindNotFound, "snapshot not found")
	// ErrDuplicateServiceName is returned when a service name already exists.
	ErrDuplicateServiceName = New(KindConflict, "duplicate service name")
)
