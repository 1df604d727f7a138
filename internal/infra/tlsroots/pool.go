package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertsFound is returned when a PEM bundle holds no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

// LoadPool reads PEM bundles into a new pool. Every file must contribute
// at least one certificate.
func LoadPool(files ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read %s: %w", f, err)
		}
		if err := appendPEM(pool, data); err != nil {
			return nil, fmt.Errorf("tlsroots: %s: %w", f, err)
		}
	}
	return pool, nil
}

// appendPEM adds every CERTIFICATE block of data to pool. Other block types
// such as keys bundled in the same file are skipped.
func appendPEM(pool *x509.CertPool, data []byte) error {
	added := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}
	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}

// ServerConfig returns the listener config serving kp. With clientCAs set,
// clients must present a certificate one of them signed.
func ServerConfig(kp *KeyPair, clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: kp.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}

// ClientConfig returns a client config trusting caFile, or the system
// roots when it is empty. certFile and keyFile, when both set, are
// presented to servers that ask for a client certificate.
func ClientConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile != "" {
		pool, err := LoadPool(caFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	switch {
	case certFile == "" && keyFile == "":
	case certFile == "" || keyFile == "":
		return nil, errors.New("tlsroots: client certificate and key must be set together")
	default:
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
