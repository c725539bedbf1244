package stresstest

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pingcap/errors"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second
)

// TLSConfig holds TLS settings for the target
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify" json:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file" toml:"ca_file" json:"ca_file"`
	CertFile           string `yaml:"cert_file" toml:"cert_file" json:"cert_file"`
	KeyFile            string `yaml:"key_file" toml:"key_file" json:"key_file"`
}

// IsZero reports whether no TLS setting is present
func (t *TLSConfig) IsZero() bool {
	return t == nil || (!t.InsecureSkipVerify && t.CAFile == "" && t.CertFile == "" && t.KeyFile == "")
}

// NewHTTPClient creates an HTTP client sized for vus concurrent virtual users,
// with connection pooling and timeouts. Redirects and cookies are left to the
// checkout runner.
func NewHTTPClient(vus int, timeout time.Duration, tlsConfig *TLSConfig) (*http.Client, error) {
	if vus <= 0 {
		vus = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		// Each VU holds at most one connection at a time
		MaxIdleConns:        vus,
		MaxIdleConnsPerHost: vus,
		MaxConnsPerHost:     vus * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	if !tlsConfig.IsZero() {
		tlsCfg := &tls.Config{
			InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
		}

		// Client certificate for mTLS
		if tlsConfig.CertFile != "" || tlsConfig.KeyFile != "" {
			if tlsConfig.CertFile == "" || tlsConfig.KeyFile == "" {
				return nil, errors.New("both cert_file and key_file are required for a client certificate")
			}
			cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
			if err != nil {
				return nil, errors.Annotate(err, "failed to load client certificate")
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}

		if tlsConfig.CAFile != "" {
			caCert, err := os.ReadFile(tlsConfig.CAFile)
			if err != nil {
				return nil, errors.Annotate(err, "failed to read CA certificate")
			}
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				return nil, errors.New("failed to parse CA certificate")
			}
			tlsCfg.RootCAs = caCertPool
		}

		transport.TLSClientConfig = tlsCfg
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
