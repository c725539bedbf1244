package stresstest

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	client, err := NewHTTPClient(8, 2*time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.Equal(t, 8, transport.MaxIdleConnsPerHost)
	require.Nil(t, transport.TLSClientConfig)
}

func TestNewHTTPClient_TLS(t *testing.T) {
	client, err := NewHTTPClient(1, 0, &TLSConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, client.Timeout)
	require.True(t, client.Transport.(*http.Transport).TLSClientConfig.InsecureSkipVerify)

	_, err = NewHTTPClient(1, 0, &TLSConfig{CertFile: "client.pem"})
	require.Error(t, err)

	_, err = NewHTTPClient(1, 0, &TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	_, err = NewHTTPClient(1, 0, &TLSConfig{CAFile: bad})
	require.Error(t, err)
}
