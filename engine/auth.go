// Authentication core: the scheme -> validator -> post-validator
// composition, plus session-attachment and challenge-composition rules.
package engine

import (
	"fmt"
	"sync"
)

// SchemeResult is what a Scheme returns: either Parsed credentials to
// feed the Validator, or a terminal outcome (success or failure) carried
// in Outcome.
type SchemeResult struct {
	Parsed  any
	Outcome *AuthOutcome // non-nil means "stop here", skip the validator
}

// AuthOutcome is the outcome of a scheme or validator call: a
// {Message, Code, Challenge, Headers} shape for both failures, plus a
// successful User on the validator path.
type AuthOutcome struct {
	Success   bool
	User      *AuthUser
	Message   string
	Code      int
	Challenge string
	Headers   map[string]string
}

// AuthUser is the `{User, ...}` record a Validator returns on success.
type AuthUser struct {
	Name     string
	Groups   []string
	Scope    string // Bearer token scope, "" if not applicable
	Metadata map[string]any
}

// Scheme parses the request for raw credentials.
type Scheme func(rc *RequestContext) SchemeResult

// Validator takes parsed credentials and returns a user on success or a
// failure outcome.
type Validator func(rc *RequestContext, parsed any) *AuthOutcome

// PostValidator runs after the validator to enforce scheme-specific
// cross-checks: Digest hash verification, Bearer scope.
type PostValidator func(rc *RequestContext, parsed any, result *AuthOutcome) *AuthOutcome

// AuthMethod is a named (scheme, validator, options) triple.
type AuthMethod struct {
	Name          string
	SchemeName    string // e.g. "Basic", "Bearer", "Digest"; used in challenge composition
	Realm         string
	Scheme        Scheme
	Validator     Validator
	PostValidator PostValidator

	Sessionless bool
	FailureURL  string
	SuccessURL  string
	PassEvent   bool

	Scopes []string // declared Bearer scopes; the engine does not read this field, NewBearerScopeValidator checks the list it is given
}

// AuthRegistry is the configure-once, read-many auth method table.
type AuthRegistry struct {
	mu      sync.RWMutex
	methods map[string]*AuthMethod
}

func NewAuthRegistry() *AuthRegistry { return &AuthRegistry{methods: make(map[string]*AuthMethod)} }

func (a *AuthRegistry) Add(m *AuthMethod) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.methods[m.Name]; ok {
		return NewError(KindConfiguration, "auth.Add", fmt.Errorf("duplicate auth method name %q", m.Name))
	}
	a.methods[m.Name] = m
	return nil
}

func (a *AuthRegistry) Get(name string) *AuthMethod {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.methods[name]
}

// runAuth implements the authentication-as-middleware stage: scheme,
// validator, post-validator, and session flow. It returns false
// (short-circuit) on any terminal outcome, having already written the
// response.
func runAuth(rc *RequestContext, route *Route) bool {
	if route.Login && rc.HTTP != nil && rc.HTTP.Method == string(MethodGet) {
		return true // a login-flagged GET route bypasses auth to render a login form
	}
	if route.AuthName == "" {
		return true
	}
	method := rc.Server.Auths().Get(route.AuthName)
	if method == nil {
		writeAuthFailure(rc, method, &AuthOutcome{Code: 500, Message: "unknown auth method"})
		return false
	}

	if route.Logout {
		if rc.Session != nil {
			rc.Session.Delete("Auth")
			rc.Server.Sessions().Revoke(rc.Session.ID)
		}
		return true
	}

	// Auth idempotence: a session already carrying the Auth
	// slot skips the scheme/validator entirely.
	if !method.Sessionless && rc.Session != nil {
		if auth, ok := rc.Session.Get("Auth"); ok {
			if authed, ok := auth.(*sessionAuth); ok && authed.IsAuthenticated {
				rc.Set("auth.user", authed.User)
				return true
			}
		}
	}

	result := method.Scheme(rc)
	var outcome *AuthOutcome
	if result.Outcome != nil {
		outcome = result.Outcome
	} else {
		outcome = method.Validator(rc, result.Parsed)
		if outcome.Success && method.PostValidator != nil {
			outcome = method.PostValidator(rc, result.Parsed, outcome)
		}
	}

	if !outcome.Success {
		writeAuthFailure(rc, method, outcome)
		return false
	}

	rc.Set("auth.user", outcome.User)

	if !method.Sessionless && rc.Session != nil {
		rc.Session.Set("Auth", &sessionAuth{User: outcome.User, IsAuthenticated: true})
	}
	return true
}

// sessionAuth is the `{User, IsAuthenticated: true}` slot session
// attachment writes into the session data bag.
type sessionAuth struct {
	User            *AuthUser
	IsAuthenticated bool
}

// writeAuthFailure implements challenge composition: on 401/403, if no
// caller-supplied WWW-Authenticate exists, set it to
// `<SchemeName> realm="<Realm>"[, <challenge>]`.
func writeAuthFailure(rc *RequestContext, method *AuthMethod, outcome *AuthOutcome) {
	rc.Response = NewResponseWriter()
	if method != nil {
		authFailuresTotal.WithLabelValues(method.Name).Inc()
	}
	code := outcome.Code
	if code == 0 {
		code = 401
	}
	rc.Response.Status = code
	for name, value := range outcome.Headers {
		rc.Response.SetHeader(name, value)
	}
	if (code == 401 || code == 403) && rc.Response.Header("WWW-Authenticate") == "" && method != nil {
		challenge := fmt.Sprintf("%s realm=%q", method.SchemeName, method.Realm)
		if outcome.Challenge != "" {
			challenge += ", " + outcome.Challenge
		}
		rc.Response.SetHeader("WWW-Authenticate", challenge)
	}
	msg := outcome.Message
	if msg == "" {
		msg = fmt.Sprintf("%d", code)
	}
	rc.Response.WriteText(code, msg)
}
