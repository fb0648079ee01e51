package engine

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequestContext(sc *ServerContext, headers map[string]string) *RequestContext {
	hdrs := make(map[string][]string, len(headers))
	for k, v := range headers {
		hdrs[canonicalHeader(k)] = []string{v}
	}
	rc := &RequestContext{
		Server:   sc,
		Type:     TypeHTTP,
		HTTP:     &HTTPRequest{Method: "GET", Path: "/", Headers: hdrs, Cookies: make(map[string]string)},
		Response: NewResponseWriter(),
		data:     make(map[string]any),
		ctx:      context.Background(),
	}
	return rc
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicAuth_Success(t *testing.T) {
	sc := NewServerContext(nil, nil)
	users := NewUserFileStore(nil)
	users.Add("alice", "swordfish", "Alice", "alice@example.com", []string{"users"})
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "basic", SchemeName: "Basic", Realm: "pode", Sessionless: true,
		Scheme: SchemeBasic, Validator: NewBasicValidator(users),
	}))

	rc := newTestRequestContext(sc, map[string]string{"Authorization": basicAuthHeader("alice", "swordfish")})
	route := &Route{AuthName: "basic"}

	ok := runAuth(rc, route)
	require.True(t, ok)
	user, _ := rc.Get("auth.user")
	require.IsType(t, &AuthUser{}, user)
	assert.Equal(t, "Alice", user.(*AuthUser).Name)
}

func TestBasicAuth_WrongPassword(t *testing.T) {
	sc := NewServerContext(nil, nil)
	users := NewUserFileStore(nil)
	users.Add("alice", "swordfish", "Alice", "alice@example.com", nil)
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "basic", SchemeName: "Basic", Realm: "pode", Sessionless: true,
		Scheme: SchemeBasic, Validator: NewBasicValidator(users),
	}))

	rc := newTestRequestContext(sc, map[string]string{"Authorization": basicAuthHeader("alice", "wrong")})
	ok := runAuth(rc, &Route{AuthName: "basic"})
	assert.False(t, ok)
	assert.Equal(t, 401, rc.Response.Status)
}

func TestBearerAuth_InsufficientScope(t *testing.T) {
	secret := []byte("test-secret")
	sc := NewServerContext(nil, nil)
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "bearer", SchemeName: "Bearer", Realm: "pode", Sessionless: true,
		Scheme:        SchemeBearer,
		Validator:     NewJWTBearerValidator(secret),
		PostValidator: NewBearerScopeValidator([]string{"admin"}),
		Scopes:        []string{"admin"},
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob", "scope": "read"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	rc := newTestRequestContext(sc, map[string]string{"Authorization": "Bearer " + signed})
	ok := runAuth(rc, &Route{AuthName: "bearer"})
	assert.False(t, ok)
	assert.Equal(t, 403, rc.Response.Status)
	assert.Contains(t, rc.Response.Header("WWW-Authenticate"), "insufficient_scope")
}

func TestBearerAuth_SufficientScope(t *testing.T) {
	secret := []byte("test-secret")
	sc := NewServerContext(nil, nil)
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "bearer", SchemeName: "Bearer", Realm: "pode", Sessionless: true,
		Scheme:        SchemeBearer,
		Validator:     NewJWTBearerValidator(secret),
		PostValidator: NewBearerScopeValidator([]string{"admin"}),
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob", "scope": "read admin"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	rc := newTestRequestContext(sc, map[string]string{"Authorization": "Bearer " + signed})
	ok := runAuth(rc, &Route{AuthName: "bearer"})
	assert.True(t, ok)
}

func TestDigestAuth_ValidResponse(t *testing.T) {
	sc := NewServerContext(nil, nil)
	users := NewUserFileStore(nil)
	users.Add("alice", "swordfish", "Alice", "", nil)
	const realm = "pode"
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "digest", SchemeName: "Digest", Realm: realm, Sessionless: true,
		Scheme:        SchemeDigest,
		Validator:     NewDigestValidator(users),
		PostValidator: NewDigestResponseValidator(users, realm),
	}))

	ha1 := md5Hex("alice:" + realm + ":swordfish")
	ha2 := md5Hex("GET:/secret")
	response := md5Hex(ha1 + ":thenonce:00000001:cnonce1:auth:" + ha2)
	header := `Digest username="alice", realm="pode", nonce="thenonce", uri="/secret", ` +
		`response="` + response + `", qop=auth, nc=00000001, cnonce="cnonce1"`

	rc := newTestRequestContext(sc, map[string]string{"Authorization": header})
	rc.HTTP.Method = "GET"
	rc.HTTP.Path = "/secret"

	ok := runAuth(rc, &Route{AuthName: "digest"})
	assert.True(t, ok)
}

func TestDigestAuth_BadResponseRejected(t *testing.T) {
	sc := NewServerContext(nil, nil)
	users := NewUserFileStore(nil)
	users.Add("alice", "swordfish", "Alice", "", nil)
	const realm = "pode"
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "digest", SchemeName: "Digest", Realm: realm, Sessionless: true,
		Scheme:        SchemeDigest,
		Validator:     NewDigestValidator(users),
		PostValidator: NewDigestResponseValidator(users, realm),
	}))

	header := `Digest username="alice", realm="pode", nonce="thenonce", uri="/secret", ` +
		`response="deadbeef", qop=auth, nc=00000001, cnonce="cnonce1"`
	rc := newTestRequestContext(sc, map[string]string{"Authorization": header})
	rc.HTTP.Method = "GET"
	rc.HTTP.Path = "/secret"

	ok := runAuth(rc, &Route{AuthName: "digest"})
	assert.False(t, ok)
	assert.Equal(t, 401, rc.Response.Status)
}

func TestRunAuth_SessionIdempotence(t *testing.T) {
	sc := NewServerContext(nil, nil)
	users := NewUserFileStore(nil)
	users.Add("alice", "swordfish", "Alice", "", nil)
	require.NoError(t, sc.AddAuthMethod(&AuthMethod{
		Name: "basic", SchemeName: "Basic", Realm: "pode",
		Scheme: SchemeBasic, Validator: NewBasicValidator(users),
	}))

	session := sc.Sessions().New("")
	rc := newTestRequestContext(sc, map[string]string{"Authorization": basicAuthHeader("alice", "swordfish")})
	rc.Session = session

	require.True(t, runAuth(rc, &Route{AuthName: "basic"}))

	// A second request reusing the session should authenticate without the
	// Authorization header at all: the Scheme/Validator never run again.
	rc2 := newTestRequestContext(sc, nil)
	rc2.Session = session
	assert.True(t, runAuth(rc2, &Route{AuthName: "basic"}))
	user, ok := rc2.Get("auth.user")
	require.True(t, ok)
	assert.Equal(t, "Alice", user.(*AuthUser).Name)
}

func TestRunAuth_NoAuthNameBypassesAuth(t *testing.T) {
	sc := NewServerContext(nil, nil)
	rc := newTestRequestContext(sc, nil)
	assert.True(t, runAuth(rc, &Route{}))
}

func TestRunAuth_UnknownMethodFails(t *testing.T) {
	sc := NewServerContext(nil, nil)
	rc := newTestRequestContext(sc, nil)
	ok := runAuth(rc, &Route{AuthName: "missing"})
	assert.False(t, ok)
	assert.Equal(t, 500, rc.Response.Status)
}
