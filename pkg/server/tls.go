package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/procmetrics/pkg/config"
)

// expiryWarning is how close to expiry a loaded certificate is logged as a
// warning.
const expiryWarning = 30 * 24 * time.Hour

// CertificateReloader serves the current certificate pair and reloads it when
// the certificate or key file changes, so renewed certificates are picked up
// without a restart.
type CertificateReloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertificateReloader loads the pair once and fails if it is unusable.
func NewCertificateReloader(certFile, keyFile string, logger *slog.Logger) (*CertificateReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger.With("component", "server.tls"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the pair from disk. On error the previous certificate stays
// in use.
func (r *CertificateReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	if err := validateLeaf(leaf, time.Now()); err != nil {
		return err
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	if until := time.Until(leaf.NotAfter); until < expiryWarning {
		r.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_at", leaf.NotAfter.Format(time.RFC3339))
	} else {
		r.logger.Info("certificate loaded",
			"subject", leaf.Subject.CommonName,
			"expires_at", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// GetCertificate is a tls.Config.GetCertificate callback.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// Watch reloads the pair on file changes until ctx is done. The parent
// directories are watched so replacements by rename are seen.
func (r *CertificateReloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	watched := map[string]bool{}
	for _, f := range []string{r.certFile, r.keyFile} {
		dir := filepath.Dir(f)
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		watched[dir] = true
	}

	certName, keyName := filepath.Clean(r.certFile), filepath.Clean(r.keyFile)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			name := filepath.Clean(event.Name)
			if name != certName && name != keyName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := r.Reload(); err != nil {
				// The other half of the pair may not be written yet.
				r.logger.Debug("certificate reload deferred", "file", event.Name, "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			r.logger.Warn("certificate watcher error", "error", err)
		}
	}
}

func validateLeaf(leaf *x509.Certificate, now time.Time) error {
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// tlsVersion maps a configured minimum version. TLS 1.0 and 1.1 are not
// accepted.
func tlsVersion(v string) uint16 {
	if v == "1.2" {
		return tls.VersionTLS12
	}
	return tls.VersionTLS13
}

// newTLSConfig builds the listener configuration for cfg.
func newTLSConfig(cfg config.TLSConfig, r *CertificateReloader) *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tlsVersion(cfg.MinVersion),
		NextProtos:     []string{"h2", "http/1.1"},
	}
}
