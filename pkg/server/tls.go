package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"tapcanvas/threadgate/pkg/config"
)

// certExpiryWarning is how close to expiry a loaded certificate starts
// logging at WARN.
const certExpiryWarning = 30 * 24 * time.Hour

// certReloader serves the certificate pair from disk and reloads it when
// either file's modification time moves forward.
type certReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

func newCertReloader(cfg config.TLSConfig, logger *slog.Logger) (*certReloader, error) {
	r := &certReloader{
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
		interval: cfg.ReloadInterval,
		logger:   logger,
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	r.logCertificate()
	return r, nil
}

// tlsConfig builds the listener configuration around the reloader.
func (r *certReloader) tlsConfig(minVersion string) *tls.Config {
	version := uint16(tls.VersionTLS13)
	if minVersion == "1.2" {
		version = tls.VersionTLS12
	}
	return &tls.Config{
		MinVersion:     version,
		GetCertificate: r.getCertificate,
	}
}

func (r *certReloader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// run checks the files every interval until ctx is done. A failed reload
// keeps serving the previous certificate.
func (r *certReloader) run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			if err := r.reload(); err != nil {
				r.logger.Error("failed to reload certificate", "cert_file", r.certFile, "error", err)
				continue
			}
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)
			r.logCertificate()
		}
	}
}

func (r *certReloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certTime) || keyInfo.ModTime().After(r.keyTime)
}

func (r *certReloader) reload() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("certificate file: %w", err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	if time.Now().After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired at %s", leaf.NotAfter.Format(time.RFC3339))
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()
	return nil
}

func (r *certReloader) logCertificate() {
	r.mu.RLock()
	leaf := r.cert.Leaf
	r.mu.RUnlock()

	remaining := time.Until(leaf.NotAfter)
	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
		"expires_in_days", int(remaining.Hours() / 24),
	}
	if remaining < certExpiryWarning {
		r.logger.Warn("certificate expiring soon", attrs...)
		return
	}
	r.logger.Info("certificate loaded", attrs...)
}
