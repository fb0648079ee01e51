// Endpoint is a bound (protocol, address, port) triple, plus the
// address-parsing edge cases below.
package engine

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol is one of the six wire protocols Pode supports.
type Protocol string

const (
	ProtoHTTP  Protocol = "HTTP"
	ProtoHTTPS Protocol = "HTTPS"
	ProtoSMTP  Protocol = "SMTP"
	ProtoTCP   Protocol = "TCP"
	ProtoWS    Protocol = "WS"
	ProtoWSS   Protocol = "WSS"
)

// TLSMaterial is one of the three ways an endpoint can obtain TLS
// material: a loaded pair, a thumbprint reference (resolved by
// an external store this package does not implement), or a generated
// self-signed certificate.
type TLSMaterial struct {
	CertFile     string // loaded certificate+key pair
	KeyFile      string
	Thumbprint   string // opaque reference into an external certificate store
	SelfSigned   bool
	AllowClientCertificate bool
}

func (m *TLSMaterial) isSet() bool {
	return m != nil && (m.CertFile != "" || m.Thumbprint != "" || m.SelfSigned)
}

// Endpoint is a registered (protocol, address, port) with an optional
// unique name and hostname filter.
type Endpoint struct {
	Name     string
	Protocol Protocol
	Address  string // resolved host, "0.0.0.0" for wildcard
	Port     int
	HostName string // optional hostname filter; "" means unset

	// UDSPath binds a unix domain socket at this filesystem path instead
	// of a TCP host:port. Address/Port are ignored when set. Kept as a
	// TCP-family detail since it shares the same accept loop and
	// per-connection handling as a TCP listener, only the bind differs.
	UDSPath string

	TLS *TLSMaterial

	NumGates        int32 // gates (accept loops) per endpoint; Start uses 1 when unset
	MaxConnsPerGate int32

	server   *ServerContext
	listener *Listener
}

// IsTLS reports whether this endpoint requires a TLS handshake on accept.
func (e *Endpoint) IsTLS() bool {
	return e.Protocol == ProtoHTTPS || e.Protocol == ProtoWSS
}

// TLSConfig builds a *tls.Config from e.TLS, generating a self-signed
// certificate when requested. Thumbprint resolution is delegated to an
// external certificate store and is not implemented by this package;
// directory/identity stores are treated as external collaborators.
func (e *Endpoint) TLSConfig() (*tls.Config, error) {
	if !e.IsTLS() || e.TLS == nil {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch {
	case e.TLS.CertFile != "" && e.TLS.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(e.TLS.CertFile, e.TLS.KeyFile)
		if err != nil {
			return nil, NewError(KindConfiguration, "endpoint.TLSConfig", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case e.TLS.SelfSigned:
		cert, err := generateSelfSignedCert(e.HostName)
		if err != nil {
			return nil, NewError(KindConfiguration, "endpoint.TLSConfig", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	case e.TLS.Thumbprint != "":
		return nil, NewError(KindConfiguration, "endpoint.TLSConfig", fmt.Errorf("thumbprint-based certificate resolution requires an external certificate store"))
	default:
		return nil, NewError(KindConfiguration, "endpoint.TLSConfig", fmt.Errorf("TLS endpoint has no certificate material"))
	}
	if e.TLS.AllowClientCertificate {
		cfg.ClientAuth = tls.RequestClientCert // request, don't require
	}
	return cfg, nil
}

// ParseEndpointAddress implements the address-parsing rules:
//
//	"all" / "*" / ""  -> host "0.0.0.0"
//	"host:port"       -> split on last colon
//	"host:"           -> port 0 (assign)
//	":port"           -> host wildcard
//	bare integer       -> port with wildcard host
//	otherwise          -> bare host, port 0
func ParseEndpointAddress(raw string) (host string, port int, err error) {
	switch raw {
	case "", "all", "*":
		return "0.0.0.0", 0, nil
	}
	if n, convErr := strconv.Atoi(raw); convErr == nil {
		return "0.0.0.0", n, nil
	}
	if strings.HasPrefix(raw, "[") { // bracketed IPv6, possibly with :port
		if idx := strings.LastIndex(raw, "]:"); idx != -1 {
			h := raw[:idx+1]
			p := raw[idx+2:]
			return finishParse(h, p)
		}
		return finishParse(raw, "")
	}
	if idx := strings.LastIndex(raw, ":"); idx != -1 {
		h := raw[:idx]
		p := raw[idx+1:]
		return finishParse(h, p)
	}
	return finishParse(raw, "")
}

func finishParse(h, p string) (string, int, error) {
	if h == "" || h == "all" || h == "*" {
		h = "0.0.0.0"
	} else if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	if ip := net.ParseIP(h); ip == nil && looksLikeIPv4(h) {
		return "", 0, NewError(KindConfiguration, "endpoint.ParseAddress", fmt.Errorf("invalid IP address: %s", h))
	}
	if p == "" {
		return h, 0, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, NewError(KindConfiguration, "endpoint.ParseAddress", fmt.Errorf("invalid port: %s", p))
	}
	return h, port, nil
}

// looksLikeIPv4 reports whether h is shaped like a dotted-quad, so that
// out-of-range literals such as "256.0.0.1" are rejected instead of being
// treated as a hostname to resolve later.
func looksLikeIPv4(h string) bool {
	parts := strings.Split(h, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// RequiresPrivilege reports whether binding port needs elevated
// privileges.
func RequiresPrivilege(port int) bool { return port > 0 && port < 1024 }

// IsUDSAddress reports whether raw names a unix domain socket path rather
// than a TCP host:port: any raw address containing a path separator is
// taken to name a filesystem path. ParseEndpointAddress does not make this
// distinction and returns such an address unchanged as the host.
func IsUDSAddress(raw string) bool { return strings.ContainsRune(raw, '/') }
