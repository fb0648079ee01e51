// Built-in authentication schemes: Basic, Bearer (with scope challenge),
// Digest (HA1/HA2/MD5 response verification), Form, and Client
// Certificate. Each is a Scheme + Validator pair ready to hand to
// AuthMethod; Digest and Bearer also supply a PostValidator.
package engine

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// displayName returns a record's display name, falling back to its login
// username when the store has none on file.
func displayName(record *UserRecord) string {
	if record.Name != "" {
		return record.Name
	}
	return record.Username
}

// basicCredentials is what SchemeBasic parses out of an Authorization
// header.
type basicCredentials struct {
	Username, Password string
}

// SchemeBasic implements RFC 7617's Basic scheme.
func SchemeBasic(rc *RequestContext) SchemeResult {
	header := rc.HTTP.Header("authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: "missing Basic credentials"}}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return SchemeResult{Outcome: &AuthOutcome{Code: 400, Message: "malformed Basic credentials"}}
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return SchemeResult{Outcome: &AuthOutcome{Code: 400, Message: "malformed Basic credentials"}}
	}
	return SchemeResult{Parsed: basicCredentials{Username: parts[0], Password: parts[1]}}
}

// NewBasicValidator builds a Validator backed by a UserFileStore, hashing
// the submitted password the same way the store's records are hashed.
func NewBasicValidator(users *UserFileStore) Validator {
	return func(rc *RequestContext, parsed any) *AuthOutcome {
		creds, ok := parsed.(basicCredentials)
		if !ok {
			return &AuthOutcome{Code: 400, Message: "malformed credentials"}
		}
		record, ok := users.Verify(creds.Username, creds.Password)
		if !ok {
			return &AuthOutcome{Code: 401, Message: "invalid username or password"}
		}
		return &AuthOutcome{Success: true, User: &AuthUser{Name: displayName(record), Groups: record.Groups, Metadata: record.Metadata}}
	}
}

// bearerCredentials is what SchemeBearer parses: the raw token string.
type bearerCredentials struct {
	Token string
}

// SchemeBearer implements RFC 6750's Bearer scheme.
func SchemeBearer(rc *RequestContext) SchemeResult {
	header := rc.HTTP.Header("authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: "missing Bearer token"}}
	}
	return SchemeResult{Parsed: bearerCredentials{Token: strings.TrimPrefix(header, prefix)}}
}

// NewJWTBearerValidator verifies the token as a JWT signed with secret
// (HMAC) and surfaces its "scope" claim for the PostValidator's scope
// check.
func NewJWTBearerValidator(secret []byte) Validator {
	return func(rc *RequestContext, parsed any) *AuthOutcome {
		creds, ok := parsed.(bearerCredentials)
		if !ok {
			return &AuthOutcome{Code: 400, Message: "malformed credentials"}
		}
		token, err := jwt.Parse(creds.Token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return &AuthOutcome{Code: 401, Message: "invalid or expired token", Challenge: `error="invalid_token"`}
		}
		claims, _ := token.Claims.(jwt.MapClaims)
		name, _ := claims["sub"].(string)
		scope, _ := claims["scope"].(string)
		return &AuthOutcome{Success: true, User: &AuthUser{Name: name, Scope: scope}}
	}
}

// NewBearerScopeValidator wraps a method's required scopes into a
// PostValidator: the token's scope must contain every required scope as
// a space-separated token, per RFC 6750 §3's "insufficient_scope" error.
func NewBearerScopeValidator(requiredScopes []string) PostValidator {
	return func(rc *RequestContext, parsed any, result *AuthOutcome) *AuthOutcome {
		if len(requiredScopes) == 0 || result.User == nil {
			return result
		}
		granted := make(map[string]bool)
		for _, s := range strings.Fields(result.User.Scope) {
			granted[s] = true
		}
		for _, required := range requiredScopes {
			if !granted[required] {
				return &AuthOutcome{
					Code:      403,
					Message:   "insufficient scope",
					Challenge: fmt.Sprintf(`error="insufficient_scope", scope=%q`, strings.Join(requiredScopes, " ")),
				}
			}
		}
		return result
	}
}

// digestCredentials is what SchemeDigest parses out of an RFC 7616
// Authorization header.
type digestCredentials struct {
	Username, Realm, Nonce, URI, Response, QOP, NC, CNonce, Algorithm string
}

// SchemeDigest implements RFC 7616's Digest scheme (the "auth" qop
// variant with MD5).
func SchemeDigest(rc *RequestContext) SchemeResult {
	header := rc.HTTP.Header("authorization")
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: "missing Digest credentials", Challenge: newDigestChallenge()}}
	}
	fields := parseDigestFields(strings.TrimPrefix(header, prefix))
	creds := digestCredentials{
		Username: fields["username"], Realm: fields["realm"], Nonce: fields["nonce"],
		URI: fields["uri"], Response: fields["response"], QOP: fields["qop"],
		NC: fields["nc"], CNonce: fields["cnonce"], Algorithm: fields["algorithm"],
	}
	if creds.Username == "" || creds.Nonce == "" || creds.Response == "" {
		return SchemeResult{Outcome: &AuthOutcome{Code: 400, Message: "malformed Digest credentials"}}
	}
	return SchemeResult{Parsed: creds}
}

func parseDigestFields(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		idx := strings.IndexByte(part, '=')
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(part[:idx])
		val := strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
		out[key] = val
	}
	return out
}

func newDigestChallenge() string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	return fmt.Sprintf(`nonce=%q, qop="auth", algorithm=MD5`, hex.EncodeToString(nonce))
}

// NewDigestValidator looks up the user's plaintext password (a store
// must keep it recoverable, unlike Basic's hash-only records, since HA1
// needs it) and defers the actual HA1/HA2 comparison to the
// PostValidator, where the request method is available.
func NewDigestValidator(users *UserFileStore) Validator {
	return func(rc *RequestContext, parsed any) *AuthOutcome {
		creds, ok := parsed.(digestCredentials)
		if !ok {
			return &AuthOutcome{Code: 400, Message: "malformed credentials"}
		}
		record, ok := users.Lookup(creds.Username)
		if !ok {
			return &AuthOutcome{Code: 401, Message: "invalid username", Challenge: newDigestChallenge()}
		}
		return &AuthOutcome{Success: true, User: &AuthUser{Name: displayName(record), Groups: record.Groups}}
	}
}

// NewDigestResponseValidator is the PostValidator that computes
// HA1 = MD5(username:realm:password), HA2 = MD5(method:uri), and checks
// response == MD5(HA1:nonce:nc:cnonce:qop:HA2) per RFC 7616 §3.4.1.
func NewDigestResponseValidator(users *UserFileStore, realm string) PostValidator {
	return func(rc *RequestContext, parsed any, result *AuthOutcome) *AuthOutcome {
		creds, ok := parsed.(digestCredentials)
		if !ok {
			return &AuthOutcome{Code: 400, Message: "malformed credentials"}
		}
		record, ok := users.Lookup(creds.Username)
		if !ok {
			return &AuthOutcome{Code: 401, Message: "invalid username", Challenge: newDigestChallenge()}
		}
		ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", creds.Username, realm, record.PlaintextPassword))
		ha2 := md5Hex(fmt.Sprintf("%s:%s", rc.HTTP.Method, creds.URI))
		var expected string
		if creds.QOP == "auth" {
			expected = md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, creds.Nonce, creds.NC, creds.CNonce, creds.QOP, ha2))
		} else {
			expected = md5Hex(fmt.Sprintf("%s:%s:%s", ha1, creds.Nonce, ha2))
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(creds.Response)) != 1 {
			return &AuthOutcome{Code: 401, Message: "invalid Digest response", Challenge: newDigestChallenge()}
		}
		return result
	}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// formCredentials is what SchemeForm parses out of a login form POST.
type formCredentials struct {
	Username, Password string
}

// SchemeForm reads credentials from an application/x-www-form-urlencoded
// body, the shape a browser login page submits.
func SchemeForm(usernameField, passwordField string) Scheme {
	if usernameField == "" {
		usernameField = "username"
	}
	if passwordField == "" {
		passwordField = "password"
	}
	return func(rc *RequestContext) SchemeResult {
		if rc.HTTP.Form == nil {
			return SchemeResult{Outcome: &AuthOutcome{Code: 400, Message: "missing form body"}}
		}
		username := rc.HTTP.Form.Get(usernameField)
		password := rc.HTTP.Form.Get(passwordField)
		if username == "" {
			return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: "missing credentials"}}
		}
		return SchemeResult{Parsed: formCredentials{Username: username, Password: password}}
	}
}

// NewFormValidator validates form credentials against a UserFileStore,
// same hash comparison Basic uses.
func NewFormValidator(users *UserFileStore) Validator {
	return func(rc *RequestContext, parsed any) *AuthOutcome {
		creds, ok := parsed.(formCredentials)
		if !ok {
			return &AuthOutcome{Code: 400, Message: "malformed credentials"}
		}
		record, ok := users.Verify(creds.Username, creds.Password)
		if !ok {
			return &AuthOutcome{Code: 401, Message: "invalid username or password"}
		}
		return &AuthOutcome{Success: true, User: &AuthUser{Name: displayName(record), Groups: record.Groups, Metadata: record.Metadata}}
	}
}

// SchemeClientCertificate reads the certificate RequestContext.Open
// already extracted during the TLS handshake; there is nothing further
// to parse off the wire.
func SchemeClientCertificate(rc *RequestContext) SchemeResult {
	if rc.ClientCertificate == nil {
		return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: "no client certificate presented"}}
	}
	if rc.ClientCertificateErr != nil {
		return SchemeResult{Outcome: &AuthOutcome{Code: 401, Message: rc.ClientCertificateErr.Error()}}
	}
	return SchemeResult{Parsed: rc.ClientCertificate}
}

// NewClientCertificateValidator accepts any certificate that passed the
// handshake-time validity check, naming the user after its leaf's
// CommonName.
func NewClientCertificateValidator() Validator {
	return func(rc *RequestContext, parsed any) *AuthOutcome {
		cert, ok := parsed.(*tls.Certificate)
		if !ok || cert.Leaf == nil {
			return &AuthOutcome{Code: 401, Message: "unverifiable client certificate"}
		}
		return &AuthOutcome{Success: true, User: &AuthUser{Name: cert.Leaf.Subject.CommonName}}
	}
}
