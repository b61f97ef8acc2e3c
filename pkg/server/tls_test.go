package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/config"
)

// writeCert writes a self-signed certificate for commonName into dir and
// returns the cert and key paths.
func writeCert(t *testing.T, dir, commonName string, notAfter time.Time) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

func tlsTestConfig(certFile, keyFile string) config.TLSConfig {
	return config.TLSConfig{
		Enabled:        true,
		CertFile:       certFile,
		KeyFile:        keyFile,
		MinVersion:     "1.2",
		ReloadInterval: 10 * time.Millisecond,
	}
}

func TestCertReloader_RejectsExpired(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "old", time.Now().Add(-time.Minute))

	if _, err := newCertReloader(tlsTestConfig(certFile, keyFile), slog.Default()); err == nil {
		t.Fatal("expected error for expired certificate")
	}
}

func TestCertReloader_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := tlsTestConfig(filepath.Join(dir, "none.crt"), filepath.Join(dir, "none.key"))

	if _, err := newCertReloader(cfg, slog.Default()); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestCertReloader_TLSConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "first", time.Now().Add(time.Hour))
	r, err := newCertReloader(tlsTestConfig(certFile, keyFile), slog.Default())
	if err != nil {
		t.Fatalf("newCertReloader: %v", err)
	}

	tests := []struct {
		version string
		want    uint16
	}{
		{"1.2", tls.VersionTLS12},
		{"1.3", tls.VersionTLS13},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := r.tlsConfig(tt.version).MinVersion; got != tt.want {
				t.Errorf("MinVersion = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestCertReloader_PicksUpNewCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "first", time.Now().Add(time.Hour))
	r, err := newCertReloader(tlsTestConfig(certFile, keyFile), slog.Default())
	if err != nil {
		t.Fatalf("newCertReloader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.run(ctx)

	writeCert(t, dir, "second", time.Now().Add(time.Hour))
	// Push mtimes forward in case the filesystem clock is coarse.
	future := time.Now().Add(time.Minute)
	_ = os.Chtimes(certFile, future, future)
	_ = os.Chtimes(keyFile, future, future)

	deadline := time.Now().Add(5 * time.Second)
	for {
		cert, _ := r.getCertificate(nil)
		if cert.Leaf.Subject.CommonName == "second" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("still serving %q", cert.Leaf.Subject.CommonName)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_ServesTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCert(t, dir, "threadgate", time.Now().Add(time.Hour))

	cfg := testConfig()
	cfg.Proxy.TLS = tlsTestConfig(certFile, keyFile)
	srv, err := New(context.Background(), Options{
		Config:   cfg,
		Store:    aliasstore.NewMemory(),
		Upstream: newFakeUpstream(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
		},
	}
	resp, err := client.Get("https://" + srv.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.TLS == nil || resp.TLS.PeerCertificates[0].Subject.CommonName != "threadgate" {
		t.Errorf("unexpected peer certificate: %+v", resp.TLS)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestServer_StartFailsWithoutCertificate(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Proxy.TLS = tlsTestConfig(filepath.Join(dir, "none.crt"), filepath.Join(dir, "none.key"))
	srv, err := New(context.Background(), Options{
		Config:   cfg,
		Store:    aliasstore.NewMemory(),
		Upstream: newFakeUpstream(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	if srv.IsRunning() {
		t.Error("server marked running after failed start")
	}
}
