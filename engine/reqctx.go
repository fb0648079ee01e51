// Request Context is the per-connection state machine: created on accept,
// transitions New -> Open -> Receiving -> Received -> Processing ->
// responds -> (Receiving again on keep-alive, or Closed). One struct is
// shared by every protocol Pode speaks rather than a distinct connection
// type per protocol, since the pipeline (router/middleware/auth) is
// protocol-agnostic above the parse step.
package engine

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestType is the Request Context's "type" field.
type RequestType int8

const (
	TypeUnknown RequestType = iota
	TypeHTTP
	TypeWebSocket
	TypeSMTP
	TypeTCP
)

func (t RequestType) String() string {
	switch t {
	case TypeHTTP:
		return "HTTP"
	case TypeWebSocket:
		return "WebSocket"
	case TypeSMTP:
		return "SMTP"
	case TypeTCP:
		return "TCP"
	default:
		return "Unknown"
	}
}

// ConnState is the Request Context's "state" field.
type ConnState int8

const (
	StateNew ConnState = iota
	StateOpen
	StateReceiving
	StateReceived
	StateProcessing
	StateError
	StateSslError
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateOpen:
		return "Open"
	case StateReceiving:
		return "Receiving"
	case StateReceived:
		return "Received"
	case StateProcessing:
		return "Processing"
	case StateError:
		return "Error"
	case StateSslError:
		return "SslError"
	case StateClosed:
		return "Closed"
	default:
		return "?"
	}
}

// RequestContext is exclusively owned by one worker executor for its
// entire lifetime.
type RequestContext struct {
	ID        string
	Server    *ServerContext
	Endpoint  *Endpoint
	Socket    net.Conn
	Timestamp time.Time

	Type  RequestType
	state ConnState
	mu    sync.Mutex

	ClientCertificate    *tls.Certificate
	ClientCertificateErr error

	HTTP *HTTPRequest
	SMTP *SMTPSession

	Response *ResponseWriter

	Session *Session

	pendingCookies []*Cookie

	data   map[string]any
	dataMu sync.RWMutex

	onEnd []Endware // endware queued onto this event only

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRequestContext constructs a Request Context in state New, as it is
// right after accept().
func NewRequestContext(server *ServerContext, endpoint *Endpoint, socket net.Conn) *RequestContext {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &RequestContext{
		ID:        uuid.NewString(),
		Server:    server,
		Endpoint:  endpoint,
		Socket:    socket,
		Timestamp: time.Now(),
		state:     StateNew,
		data:      make(map[string]any),
		ctx:       ctx,
		cancel:    cancel,
	}
	return rc
}

func (rc *RequestContext) State() ConnState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}
func (rc *RequestContext) setState(s ConnState) {
	rc.mu.Lock()
	rc.state = s
	rc.mu.Unlock()
}

func (rc *RequestContext) Context() context.Context { return rc.ctx }

// Open performs the TLS handshake (if tlsConfig is non-nil) and, when
// allowClientCert is set, requests (does not require) a client
// certificate, exposing it plus any validation error on the Request
// Context. On success it transitions New -> Open; on TLS
// failure it transitions to SslError.
func (rc *RequestContext) Open(tlsConfig *tls.Config, allowClientCert bool) error {
	if tlsConfig == nil {
		rc.setState(StateOpen)
		return nil
	}
	tlsConn := tls.Server(rc.Socket, tlsConfig)
	_ = tlsConn.SetDeadline(time.Now().Add(10 * time.Second))
	if err := tlsConn.Handshake(); err != nil {
		rc.setState(StateSslError)
		return NewError(KindTLSHandshake, "reqctx.Open", err)
	}
	_ = tlsConn.SetDeadline(time.Time{})
	rc.Socket = tlsConn
	if allowClientCert {
		state := tlsConn.ConnectionState()
		if len(state.PeerCertificates) > 0 {
			rc.ClientCertificate = &tls.Certificate{Certificate: [][]byte{state.PeerCertificates[0].Raw}, Leaf: state.PeerCertificates[0]}
			now := time.Now()
			if now.Before(state.PeerCertificates[0].NotBefore) || now.After(state.PeerCertificates[0].NotAfter) {
				rc.ClientCertificateErr = NewError(KindAuthFail, "reqctx.Open", errExpiredCertificate)
			}
		}
	}
	rc.setState(StateOpen)
	return nil
}

// Data bag accessors.
func (rc *RequestContext) Get(key string) (any, bool) {
	rc.dataMu.RLock()
	defer rc.dataMu.RUnlock()
	v, ok := rc.data[key]
	return v, ok
}
func (rc *RequestContext) Set(key string, value any) {
	rc.dataMu.Lock()
	rc.data[key] = value
	rc.dataMu.Unlock()
}
func (rc *RequestContext) Delete(key string) {
	rc.dataMu.Lock()
	delete(rc.data, key)
	rc.dataMu.Unlock()
}

// OnEnd queues ew onto this Request Context only, in addition to the
// globally-registered endware.
func (rc *RequestContext) OnEnd(ew Endware) { rc.onEnd = append(rc.onEnd, ew) }

// AddCookie queues a cookie onto the response.
func (rc *RequestContext) AddCookie(c *Cookie) { rc.pendingCookies = append(rc.pendingCookies, c) }

// CanProcess reports whether this Request Context may be reset to accept
// another message on the same connection ( SMTP "resettable
// for another message").
func (rc *RequestContext) CanProcess() bool {
	switch rc.Type {
	case TypeSMTP:
		return rc.SMTP != nil && rc.SMTP.phase != smtpPhaseQuit
	case TypeHTTP:
		return rc.HTTP != nil && rc.HTTP.KeepAlive
	default:
		return false
	}
}

// Close transitions to Closed and releases the socket.
func (rc *RequestContext) Close() error {
	rc.cancel()
	rc.setState(StateClosed)
	return rc.Socket.Close()
}

var errExpiredCertificate = &simpleError{"client certificate is not within its validity period"}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
