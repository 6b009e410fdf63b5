package httpclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetClientReusesInstance(t *testing.T) {
	opts := Options{Timeout: 5 * time.Second}

	first, err := GetClient(opts)
	require.NoError(t, err)
	second, err := GetClient(opts)
	require.NoError(t, err)
	require.Same(t, first, second)

	other, err := GetClient(Options{Timeout: 7 * time.Second})
	require.NoError(t, err)
	require.NotSame(t, first, other)
}

func TestBuildTransportProxySchemes(t *testing.T) {
	transport, err := buildTransport(Options{ProxyURL: "http://127.0.0.1:8080"})
	require.NoError(t, err)
	require.NotNil(t, transport.Proxy)
	require.Nil(t, transport.DialContext)

	transport, err = buildTransport(Options{ProxyURL: "socks5://127.0.0.1:1080"})
	require.NoError(t, err)
	require.Nil(t, transport.Proxy)
	require.NotNil(t, transport.DialContext)
}

func TestBuildTransportRejectsUnsupportedScheme(t *testing.T) {
	_, err := buildTransport(Options{ProxyURL: "ftp://127.0.0.1:21"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported proxy scheme")
}

func TestBuildTransportPoolSizing(t *testing.T) {
	transport, err := buildTransport(Options{})
	require.NoError(t, err)
	require.Equal(t, defaultMaxIdleConns, transport.MaxIdleConns)
	require.Equal(t, defaultMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)

	transport, err = buildTransport(Options{MaxIdleConns: 5, MaxIdleConnsPerHost: 2, MaxConnsPerHost: 3})
	require.NoError(t, err)
	require.Equal(t, 5, transport.MaxIdleConns)
	require.Equal(t, 2, transport.MaxIdleConnsPerHost)
	require.Equal(t, 3, transport.MaxConnsPerHost)
}
