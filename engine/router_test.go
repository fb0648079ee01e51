package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_LiteralBeatsParamBeatsWildcard(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/users/:id"}))
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/users/me"}))
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/users/*"}))

	route, params, ok := rt.Match(MethodGet, "/users/me", "")
	require.True(t, ok)
	assert.Equal(t, "/users/me", route.Pattern)
	assert.Empty(t, params)

	route, params, ok = rt.Match(MethodGet, "/users/42", "")
	require.True(t, ok)
	assert.Equal(t, "/users/:id", route.Pattern)
	assert.Equal(t, "42", params["id"])
}

func TestRouter_WildcardMatchesExactlyOneSegment(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/files/*"}))

	_, _, ok := rt.Match(MethodGet, "/files/report.pdf", "")
	assert.True(t, ok)

	_, _, ok = rt.Match(MethodGet, "/files/sub/report.pdf", "")
	assert.False(t, ok, "wildcard must not match more than one segment")
}

func TestRouter_MethodAnyLosesToExactMethod(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodAny, Pattern: "/ping"}))
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/ping"}))

	route, _, ok := rt.Match(MethodGet, "/ping", "")
	require.True(t, ok)
	assert.Equal(t, MethodGet, route.Method)

	route, _, ok = rt.Match(MethodPost, "/ping", "")
	require.True(t, ok)
	assert.Equal(t, MethodAny, route.Method)
}

func TestRouter_EndpointNameFilter(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/admin", EndpointName: "internal"}))

	_, _, ok := rt.Match(MethodGet, "/admin", "public")
	assert.False(t, ok)

	_, _, ok = rt.Match(MethodGet, "/admin", "internal")
	assert.True(t, ok)
}

func TestRouter_NoMatch(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/only"}))
	_, _, ok := rt.Match(MethodGet, "/nope", "")
	assert.False(t, ok)
}

func TestRouter_DuplicateRouteRejected(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/x"}))
	err := rt.AddRoute(&Route{Method: MethodGet, Pattern: "/x"})
	assert.Error(t, err)
}

func TestRouter_AmbiguousRoutesRejected(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/users/:id"}))
	err := rt.AddRoute(&Route{Method: MethodGet, Pattern: "/users/:name"})
	assert.Error(t, err, "two single-param routes at the same position tie for specificity")
}

func TestRouter_RootPath(t *testing.T) {
	rt := NewRouter()
	require.NoError(t, rt.AddRoute(&Route{Method: MethodGet, Pattern: "/"}))
	route, _, ok := rt.Match(MethodGet, "/", "")
	require.True(t, ok)
	assert.Equal(t, "/", route.Pattern)
}
