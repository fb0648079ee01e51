package engine

import "fmt"

// Kind classifies an error so call sites can decide whether it is
// fatal-at-startup or caught-at-request-boundary.
type Kind int8

const (
	KindConfiguration Kind = iota + 1 // bad endpoint, duplicate name, missing TLS material
	KindBind                         // address in use, permission denied
	KindTLSHandshake                 // connection-local, sets SslError
	KindProtocolParse                // connection-local, responds 400
	KindAuthFail                     // per-request, 401/403
	KindHandlerException             // per-request, logged, 500
	KindSchedulerTick                // logged, tick skipped
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBind:
		return "bind"
	case KindTLSHandshake:
		return "tls-handshake"
	case KindProtocolParse:
		return "protocol-parse"
	case KindAuthFail:
		return "auth-fail"
	case KindHandlerException:
		return "handler-exception"
	case KindSchedulerTick:
		return "scheduler-tick"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind cannot be attributed to a
// single request and must bubble up to terminate the server (
// propagation policy).
func (k Kind) Fatal() bool {
	return k == KindConfiguration || k == KindBind
}

// Error wraps an underlying error with the Kind that decides its
// propagation policy.
type Error struct {
	Kind  Kind
	Op    string // the operation that failed, e.g. "listener.Open", "auth.basic"
	Err   error
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err.Error())
}

func (e *Error) Unwrap() error { return e.Err }
