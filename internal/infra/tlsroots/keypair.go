package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// KeyPair is a certificate and key loaded from files. Reload swaps in the
// files' current contents; a pair that fails to load leaves the previous
// one in service.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	cert atomic.Pointer[tls.Certificate]
}

// LoadKeyPair loads certFile and keyFile.
func LoadKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger.With("component", "tls"),
	}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Reload reads both files again.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair %s: %w", kp.certFile, err)
	}
	kp.cert.Store(&cert)

	attrs := []any{"cert_file", kp.certFile}
	if cert.Leaf != nil {
		attrs = append(attrs, "not_after", cert.Leaf.NotAfter)
	}
	kp.logger.Info("certificate loaded", attrs...)
	return nil
}

// Certificate returns the pair in service.
func (kp *KeyPair) Certificate() *tls.Certificate {
	return kp.cert.Load()
}

// GetCertificate implements tls.Config.GetCertificate.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return kp.cert.Load(), nil
}

// WatchedFile is one file of the pair. Its Reload reloads the whole pair.
type WatchedFile struct {
	path string
	kp   *KeyPair
}

// Path returns the file's path.
func (f WatchedFile) Path() string { return f.path }

// Reload reloads the pair the file belongs to.
func (f WatchedFile) Reload() error { return f.kp.Reload() }

// Files returns the certificate and key files, for a file watcher. Writing
// either one reloads the pair.
func (kp *KeyPair) Files() []WatchedFile {
	return []WatchedFile{{path: kp.certFile, kp: kp}, {path: kp.keyFile, kp: kp}}
}
