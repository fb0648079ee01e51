// ServerContext is the process-wide state: it owns every endpoint,
// route, auth method, timer, schedule, the session store, and the single
// lockable guarding shared state. It is the single root a deployment's
// main package builds once and registers endpoints/routes/auth methods
// onto before calling Start.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// ServerContext is the single owner of engine state for one run of the
// server. A fresh ServerContext is created on every restart (manual,
// timer-driven, schedule-driven, or file-watch-driven); see shutdown.go.
type ServerContext struct {
	Component_

	Config *Config
	Logger Logger
	Tracer trace.Tracer

	lockable *Lockable

	endpointsLock sync.RWMutex
	endpoints     []*Endpoint
	endpointNames map[string]*Endpoint

	router   *Router
	auths    *AuthRegistry
	sessions *SessionStore
	sched    *Scheduler
	shared   *SharedState
	watcher  *Watcher

	globalMiddleware []Middleware
	globalEndware    []Endware

	onStopHandlers []func(context.Context)

	// Profiling is nil unless server.profiling.enable is set; its methods
	// are safe to call on a nil receiver so wiring code never needs a
	// nil check.
	Profiling *Profiler

	runningMu sync.Mutex
	running   []*runningListener

	webSocketHandler func(rc *RequestContext, frame *WSFrame)
	smtpHandler      func(rc *RequestContext, session *SMTPSession)
	tcpHandler       func(rc *RequestContext, data []byte)
}

// OnWebSocketMessage registers the handler invoked for every text/binary
// frame received on an upgraded connection: unlike HTTP, a WS endpoint
// has no (method, path) to route on, so it gets a single server-wide
// handler rather than the Router.
func (sc *ServerContext) OnWebSocketMessage(fn func(rc *RequestContext, frame *WSFrame)) {
	sc.webSocketHandler = fn
}

// OnSMTPMessage registers the handler invoked once per dispatchable SMTP
// message: each accepted message surfaces as one dispatchable event.
func (sc *ServerContext) OnSMTPMessage(fn func(rc *RequestContext, session *SMTPSession)) {
	sc.smtpHandler = fn
}

// OnTCPData registers the handler invoked for every read on a raw TCP
// endpoint.
func (sc *ServerContext) OnTCPData(fn func(rc *RequestContext, data []byte)) {
	sc.tcpHandler = fn
}

// NewServerContext builds a ServerContext from a parsed Config. Endpoints,
// routes, and auth methods are added afterwards through the registration
// API (AddEndpoint, AddRoute, AddAuthMethod) the way a Pode script would
// call them; route table and auth registry are "configure-once,
// read-many" so they are only mutated before Start.
func NewServerContext(cfg *Config, logger Logger) *ServerContext {
	if cfg == nil {
		cfg = LoadConfigDefault()
	}
	if logger == nil {
		logger = CreateLogger("noop", nil)
	}
	sc := &ServerContext{
		Config:        cfg,
		Logger:        logger,
		lockable:      NewLockable(),
		endpointNames: make(map[string]*Endpoint),
	}
	sc.MakeComp("server")
	sc.router = NewRouter()
	sc.auths = NewAuthRegistry()
	sc.sessions = NewSessionStore()
	sc.shared = NewSharedState()
	sc.sched = NewScheduler(sc)
	if profiler, err := NewProfiler(cfg.Server.Profiling); err == nil {
		sc.Profiling = profiler
	} else {
		logger.Warnf("profiler not started: %s", err.Error())
	}
	return sc
}

func (sc *ServerContext) Lockable() *Lockable     { return sc.lockable }
func (sc *ServerContext) Router() *Router         { return sc.router }
func (sc *ServerContext) Auths() *AuthRegistry    { return sc.auths }
func (sc *ServerContext) Sessions() *SessionStore { return sc.sessions }
func (sc *ServerContext) Scheduler() *Scheduler   { return sc.sched }
func (sc *ServerContext) Shared() *SharedState    { return sc.shared }

// Use registers global middleware, appended in registration order ahead of
// route-specific middleware.
func (sc *ServerContext) Use(mw Middleware) { sc.globalMiddleware = append(sc.globalMiddleware, mw) }

// Endware registers a global post-response handler.
func (sc *ServerContext) Endware(ew Endware) { sc.globalEndware = append(sc.globalEndware, ew) }

// OnStop registers a handler invoked during graceful shutdown after
// in-flight requests drain.
func (sc *ServerContext) OnStop(fn func(context.Context)) {
	sc.onStopHandlers = append(sc.onStopHandlers, fn)
}

// Endpoints returns a snapshot of the registered endpoints.
func (sc *ServerContext) Endpoints() []*Endpoint {
	sc.endpointsLock.RLock()
	defer sc.endpointsLock.RUnlock()
	out := make([]*Endpoint, len(sc.endpoints))
	copy(out, sc.endpoints)
	return out
}

// family groups protocols into mutually exclusive sets: a server may run
// web endpoints (HTTP/HTTPS/WS/WSS), or the single SMTP endpoint, or the
// single TCP endpoint, never a mix.
type protoFamily int8

const (
	familyWeb protoFamily = iota + 1 // HTTP, HTTPS, WS, WSS
	familySMTP
	familyTCP
)

func familyOf(p Protocol) protoFamily {
	switch p {
	case ProtoHTTP, ProtoHTTPS, ProtoWS, ProtoWSS:
		return familyWeb
	case ProtoSMTP:
		return familySMTP
	case ProtoTCP:
		return familyTCP
	default:
		BugExitln("unknown protocol in familyOf")
		return 0
	}
}

// AddEndpoint registers ep, enforcing: protocol family exclusivity, name
// uniqueness, unique (protocol, address, port), and idempotent
// re-registration of an identical triple.
func (sc *ServerContext) AddEndpoint(ep *Endpoint) error {
	sc.endpointsLock.Lock()
	defer sc.endpointsLock.Unlock()

	for _, existing := range sc.endpoints {
		if existing.Protocol == ep.Protocol && existing.Address == ep.Address && existing.Port == ep.Port {
			return nil // re-adding an identical triple is a no-op
		}
	}
	if ep.Name != "" {
		if _, ok := sc.endpointNames[ep.Name]; ok {
			return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("duplicate endpoint name %q", ep.Name))
		}
	}
	wantFamily := familyOf(ep.Protocol)
	for _, existing := range sc.endpoints {
		haveFamily := familyOf(existing.Protocol)
		if haveFamily == wantFamily {
			continue
		}
		switch wantFamily {
		case familySMTP:
			return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("cannot add SMTP endpoint: server already has %s endpoints", existing.Protocol))
		case familyTCP:
			return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("cannot add TCP endpoint: server already has %s endpoints", existing.Protocol))
		case familyWeb:
			return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("cannot add %s endpoint: server already has %s endpoints", ep.Protocol, existing.Protocol))
		}
	}
	if wantFamily == familySMTP {
		for _, existing := range sc.endpoints {
			if existing.Protocol == ProtoSMTP {
				return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("cannot add SMTP endpoint: exactly one SMTP endpoint is allowed"))
			}
		}
	}
	if wantFamily == familyTCP {
		for _, existing := range sc.endpoints {
			if existing.Protocol == ProtoTCP {
				return NewError(KindConfiguration, "server.AddEndpoint", fmt.Errorf("cannot add TCP endpoint: exactly one TCP endpoint is allowed"))
			}
		}
	}

	ep.server = sc
	sc.endpoints = append(sc.endpoints, ep)
	if ep.Name != "" {
		sc.endpointNames[ep.Name] = ep
	}
	return nil
}

// EndpointByName looks up a registered endpoint by its unique name.
func (sc *ServerContext) EndpointByName(name string) *Endpoint {
	sc.endpointsLock.RLock()
	defer sc.endpointsLock.RUnlock()
	return sc.endpointNames[name]
}

// AddRoute delegates to the router, keeping ServerContext as the single
// entry point user code goes through.
func (sc *ServerContext) AddRoute(r *Route) error { return sc.router.AddRoute(r) }

// AddAuthMethod delegates to the auth registry.
func (sc *ServerContext) AddAuthMethod(m *AuthMethod) error { return sc.auths.Add(m) }
