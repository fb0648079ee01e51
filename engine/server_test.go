package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEndpoint_DistinctTriples(t *testing.T) {
	sc := NewServerContext(nil, nil)

	err := sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "127.0.0.1", Port: 80})
	require.NoError(t, err)
	err = sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "pode.foo.com", Port: 80, HostName: "pode.foo.com"})
	require.NoError(t, err)

	eps := sc.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "127.0.0.1", eps[0].Address)
	assert.Equal(t, "pode.foo.com", eps[1].Address)
	assert.Equal(t, "pode.foo.com", eps[1].HostName)
}

func TestAddEndpoint_IdenticalTripleIsNoOp(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 8080}))
	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 8080}))

	assert.Len(t, sc.Endpoints(), 1)
}

func TestAddEndpoint_DuplicateName(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Name: "main", Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 8080}))
	err := sc.AddEndpoint(&Endpoint{Name: "main", Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 8081})
	assert.Error(t, err)
	assert.Len(t, sc.Endpoints(), 1)
}

func TestAddEndpoint_SMTPRejectedAfterWeb(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 80}))
	err := sc.AddEndpoint(&Endpoint{Protocol: ProtoSMTP, Address: "0.0.0.0", Port: 25})
	require.Error(t, err)
	assert.Len(t, sc.Endpoints(), 1)
}

func TestAddEndpoint_OnlyOneSMTPEndpoint(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoSMTP, Address: "0.0.0.0", Port: 25}))
	err := sc.AddEndpoint(&Endpoint{Protocol: ProtoSMTP, Address: "0.0.0.0", Port: 2525})
	assert.Error(t, err)
	assert.Len(t, sc.Endpoints(), 1)
}

func TestAddEndpoint_WebFamilyAllowsMix(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 80}))
	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoHTTPS, Address: "0.0.0.0", Port: 443}))
	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoWS, Address: "0.0.0.0", Port: 8081}))
	assert.Len(t, sc.Endpoints(), 3)
}

func TestAddEndpoint_OnlyOneTCPEndpoint(t *testing.T) {
	sc := NewServerContext(nil, nil)

	require.NoError(t, sc.AddEndpoint(&Endpoint{Protocol: ProtoTCP, Address: "0.0.0.0", Port: 9000}))
	err := sc.AddEndpoint(&Endpoint{Protocol: ProtoTCP, Address: "0.0.0.0", Port: 9001})
	assert.Error(t, err)
}

func TestEndpointByName(t *testing.T) {
	sc := NewServerContext(nil, nil)
	require.NoError(t, sc.AddEndpoint(&Endpoint{Name: "main", Protocol: ProtoHTTP, Address: "0.0.0.0", Port: 8080}))

	ep := sc.EndpointByName("main")
	require.NotNil(t, ep)
	assert.Equal(t, 8080, ep.Port)
	assert.Nil(t, sc.EndpointByName("nonexistent"))
}
