// Package tls builds the HTTPS listener configuration: certificates from
// disk or a generated self-signed pair, optional client verification and a
// restricted cipher list.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultSelfSignedValidity is the lifetime of generated certificates.
const DefaultSelfSignedValidity = 365 * 24 * time.Hour

// Config selects the server certificate and client policy.
type Config struct {
	CertFile string
	KeyFile  string
	// ClientCAFile enables client certificate verification against this CA.
	ClientCAFile string
	// RequireClientCert rejects clients without a certificate signed by
	// ClientCAFile. Without it certificates are verified only when offered.
	RequireClientCert bool

	// SelfSigned generates an in-memory certificate for Hosts when no
	// CertFile/KeyFile pair is configured.
	SelfSigned bool
	Hosts      []string
	ValidFor   time.Duration

	// MinVersion is "1.2" or "1.3"; empty means 1.2.
	MinVersion string
}

var ErrNoCertificate = errors.New("tls: no certificate configured and self-signed generation disabled")

// ParseVersion maps "1.2" and "1.3" to crypto/tls constants.
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("tls: unsupported min version %q", v)
	}
}

// ServerConfig returns the *tls.Config for the HTTPS listener.
func ServerConfig(cfg Config) (*tls.Config, error) {
	minVersion, err := ParseVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	var cert tls.Certificate
	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
	case cfg.SelfSigned:
		validFor := cfg.ValidFor
		if validFor <= 0 {
			validFor = DefaultSelfSignedValidity
		}
		cert, err = GenerateSelfSigned(cfg.Hosts, validFor)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoCertificate
	}

	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: SecureCipherSuites(),
		ClientAuth:   tls.NoClientCert,
	}

	if cfg.ClientCAFile != "" {
		pool, err := LoadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tc.ClientCAs = pool
		tc.ClientAuth = tls.VerifyClientCertIfGiven
		if cfg.RequireClientCert {
			tc.ClientAuth = tls.RequireAndVerifyClientCert
		}
	}
	return tc, nil
}

// LoadCAPool reads a PEM bundle into a certificate pool.
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", caFile)
	}
	return pool, nil
}

// SecureCipherSuites is the TLS 1.2 AEAD subset. TLS 1.3 suites are not
// configurable in crypto/tls and are always enabled.
func SecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}

// CertificateInfo is what the health check reports about the serving
// certificate.
type CertificateInfo struct {
	Subject   string    `json:"subject"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	DNSNames  []string  `json:"dns_names,omitempty"`
}

// ExpiresIn returns the time left until NotAfter.
func (ci CertificateInfo) ExpiresIn(now time.Time) time.Duration {
	return ci.NotAfter.Sub(now)
}

// Inspect describes the leaf certificate of tc.
func Inspect(tc *tls.Config) (CertificateInfo, error) {
	if tc == nil || len(tc.Certificates) == 0 || len(tc.Certificates[0].Certificate) == 0 {
		return CertificateInfo{}, ErrNoCertificate
	}
	leaf := tc.Certificates[0].Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(tc.Certificates[0].Certificate[0])
		if err != nil {
			return CertificateInfo{}, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}
	return CertificateInfo{
		Subject:   leaf.Subject.String(),
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
		DNSNames:  leaf.DNSNames,
	}, nil
}

// InspectFile describes the first certificate in a PEM file.
func InspectFile(certFile string) (CertificateInfo, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return CertificateInfo{}, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return CertificateInfo{}, fmt.Errorf("failed to parse certificate PEM")
	}
	return Inspect(&tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{block.Bytes}}}})
}
