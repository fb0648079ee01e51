// Listener accepts sockets per endpoint and drives the per-connection
// state machine with an explicit per-connection loop across all six
// protocols Pode speaks. A UDS endpoint binds a unix domain socket in
// place of the TCP listener, sharing everything downstream of Accept.
package engine

import (
	"bufio"
	"crypto/tls"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// maxRequestsPerConn bounds HTTP/1.1 keep-alive reuse.
const maxRequestsPerConn = 10000

// keepAliveIdleTimeout is how long a kept-alive connection may sit idle
// before the next request line.
const keepAliveIdleTimeout = 75 * time.Second

// Listener is the per-endpoint accept loop.
type Listener struct {
	endpoint  *Endpoint
	server    *ServerContext
	net       net.Listener
	tlsConfig *tls.Config

	shut atomic.Bool

	openSocketsMu sync.RWMutex
	openSockets   map[string]*RequestContext

	subs sync.WaitGroup
}

func NewListener(ep *Endpoint, server *ServerContext) *Listener {
	l := &Listener{endpoint: ep, server: server, openSockets: make(map[string]*RequestContext)}
	ep.listener = l
	return l
}

// Open binds the listening socket. TLS endpoints build their tls.Config
// here; the handshake itself happens per-connection in RequestContext.Open.
// An endpoint whose UDSPath is set binds a unix domain socket instead of
// TCP; everything past the bind (TLS config, accept loop, per-connection
// dispatch) is identical either way.
func (l *Listener) Open() error {
	var ln net.Listener
	var err error
	if l.endpoint.UDSPath != "" {
		_ = os.Remove(l.endpoint.UDSPath) // clear a stale socket file from a previous run
		ln, err = net.Listen("unix", l.endpoint.UDSPath)
	} else {
		if RequiresPrivilege(l.endpoint.Port) && !hasElevatedPrivileges() {
			return NewError(KindBind, "listener.Open", errNeedsPrivilege)
		}
		addr := net.JoinHostPort(l.endpoint.Address, strconv.Itoa(l.endpoint.Port))
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return NewError(KindBind, "listener.Open", err)
	}
	l.net = ln
	if l.endpoint.IsTLS() {
		cfg, err := l.endpoint.TLSConfig()
		if err != nil {
			ln.Close()
			return err
		}
		l.tlsConfig = cfg
	}
	return nil
}

// Serve runs the accept loop until Shut is called. On accept it
// constructs a Request Context and hands it to the worker pool. Each
// goroutine calling Serve is one gate: when MaxConnsPerGate is set, a
// gate rejects new connections once its own in-flight count reaches the
// limit instead of drawing them off a shared counter, so raising
// NumGates raises total capacity linearly.
func (l *Listener) Serve(sched *Scheduler) {
	var numConns int32
	limit := l.endpoint.MaxConnsPerGate
	for {
		conn, err := l.net.Accept()
		if err != nil {
			if l.shut.Load() {
				break
			}
			continue
		}
		if limit > 0 && atomic.LoadInt32(&numConns) >= limit {
			conn.Close() // gate at capacity (ReachLimit)
			continue
		}
		atomic.AddInt32(&numConns, 1)
		l.subs.Add(1)
		rc := NewRequestContext(l.server, l.endpoint, conn)
		sched.Submit(func() {
			defer l.subs.Done()
			defer atomic.AddInt32(&numConns, -1)
			l.serveConn(rc)
		})
	}
	l.subs.Wait()
}

func (l *Listener) Shut() error {
	l.shut.Store(true)
	if l.net != nil {
		return l.net.Close()
	}
	return nil
}

func (l *Listener) registerOpenSocket(clientID string, rc *RequestContext) {
	l.openSocketsMu.Lock()
	l.openSockets[clientID] = rc
	l.openSocketsMu.Unlock()
}
func (l *Listener) unregisterOpenSocket(clientID string) {
	l.openSocketsMu.Lock()
	delete(l.openSockets, clientID)
	l.openSocketsMu.Unlock()
}

// serveConn dispatches an accepted connection to the protocol-specific
// loop for its endpoint.
func (l *Listener) serveConn(rc *RequestContext) {
	defer rc.Close()

	if err := rc.Open(l.tlsConfig, l.endpoint.TLS.isSet() && l.endpoint.TLS.AllowClientCertificate); err != nil {
		l.server.Logger.Warnf("conn %s: %s", rc.ID, err.Error())
		return
	}

	switch l.endpoint.Protocol {
	case ProtoHTTP, ProtoHTTPS, ProtoWS, ProtoWSS:
		l.serveHTTPConn(rc)
	case ProtoSMTP:
		l.serveSMTPConn(rc)
	case ProtoTCP:
		l.serveTCPConn(rc)
	}
}

// serveHTTPConn is the explicit per-connection keep-alive loop 
// calls for: parse one request, run the pipeline, respond, and either loop
// for the next request on the same connection or close.
func (l *Listener) serveHTTPConn(rc *RequestContext) {
	reader := bufio.NewReader(rc.Socket)
	rc.Type = TypeHTTP

	for requestNum := 0; requestNum < maxRequestsPerConn; requestNum++ {
		_ = rc.Socket.SetReadDeadline(time.Now().Add(keepAliveIdleTimeout))
		rc.setState(StateReceiving)

		bodyLimit := l.server.Config.Server.Request.BodySize
		req, err := ParseHTTPRequest(reader, bodyLimit)
		if err != nil {
			if requestNum > 0 {
				return // idle keep-alive connection closed or timed out; not an error worth logging
			}
			l.writeParseError(rc)
			return
		}
		rc.HTTP = req
		rc.Response = NewResponseWriter()
		rc.setState(StateReceived)

		if req.IsUpgrade {
			clientID, err := rc.UpgradeWebSocket(req)
			if err != nil {
				l.writeParseError(rc)
				return
			}
			l.serveWebSocketConn(rc, reader, clientID)
			return
		}

		rc.setState(StateProcessing)
		RunPipeline(rc)
		_ = rc.Socket.SetWriteDeadline(time.Now().Add(keepAliveIdleTimeout))
		if err := rc.writeHTTPResponse(); err != nil {
			return
		}

		if !req.KeepAlive {
			return
		}
		rc.setState(StateReceiving)
	}
}

func (l *Listener) writeParseError(rc *RequestContext) {
	rc.HTTP = &HTTPRequest{}
	rc.Response = NewResponseWriter()
	rc.Response.WriteText(400, "400 Bad Request")
	_ = rc.writeHTTPResponse()
}

// serveWebSocketConn reads frames off an upgraded connection until it
// closes, handing each text/binary frame to the WebSocket message handler
// registered on the server (if any).
func (l *Listener) serveWebSocketConn(rc *RequestContext, reader *bufio.Reader, clientID string) {
	defer l.unregisterOpenSocket(clientID)
	for {
		frame, err := ReadWSFrame(reader)
		if err != nil {
			return
		}
		switch frame.Opcode {
		case wsOpClose:
			_ = WriteWSFrame(rc.Socket, wsOpClose, nil)
			return
		case wsOpPing:
			_ = WriteWSFrame(rc.Socket, wsOpPong, frame.Payload)
		case wsOpText, wsOpBinary:
			if handler := l.server.webSocketHandler; handler != nil {
				handler(rc, frame)
			}
		}
	}
}

// serveSMTPConn runs the SMTP command dialog.
func (l *Listener) serveSMTPConn(rc *RequestContext) {
	reader := bufio.NewReader(rc.Socket)
	session := NewSMTPSession()
	rc.SMTP = session
	rc.Type = TypeSMTP

	if err := session.Greet(rc.Socket, "pode"); err != nil {
		return
	}
	for {
		_ = rc.Socket.SetReadDeadline(time.Now().Add(keepAliveIdleTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		dispatch, quit, err := session.HandleLine(reader, rc.Socket, line)
		if err != nil {
			return
		}
		if dispatch {
			rc.setState(StateProcessing)
			if handler := l.server.smtpHandler; handler != nil {
				handler(rc, session)
			}
			rc.setState(StateReceiving)
			if rc.CanProcess() {
				*session = SMTPSession{phase: smtpPhaseHelo, ClientName: session.ClientName}
				rc.SMTP = session
			}
		}
		if quit {
			return
		}
	}
}

// serveTCPConn passes raw bytes to a registered TCP handler, one read/
// handle/write cycle per message (the generic "protocol-
// specific request context").
func (l *Listener) serveTCPConn(rc *RequestContext) {
	rc.Type = TypeTCP
	reader := bufio.NewReader(rc.Socket)
	buf := make([]byte, 64*1024)
	for {
		_ = rc.Socket.SetReadDeadline(time.Now().Add(keepAliveIdleTimeout))
		n, err := reader.Read(buf)
		if err != nil {
			return
		}
		if handler := l.server.tcpHandler; handler != nil {
			rc.setState(StateProcessing)
			handler(rc, buf[:n])
			rc.setState(StateReceiving)
		}
	}
}
