package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
)

// generateTestCert creates a self-signed certificate for testing
func generateTestCert(t *testing.T, cn string) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   cn,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM
}

// setupTestFiles writes a certificate, its key and the same certificate
// as a CA into a temporary directory.
func setupTestFiles(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()

	dir := t.TempDir()
	certPEM, keyPEM := generateTestCert(t, "gmsec-client")

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0644))
	return certFile, keyFile, caFile
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		enabled bool
		want    ClientConfig
	}{
		{name: "off by default"},
		{
			name:    "explicit",
			args:    []string{"mw-tls=true", "mw-tls-min-version=1.3"},
			enabled: true,
			want:    ClientConfig{MinVersion: "1.3"},
		},
		{
			name:    "implied by CA list",
			args:    []string{"mw-tls-ca=/etc/a.pem, /etc/b.pem"},
			enabled: true,
			want:    ClientConfig{CAFiles: []string{"/etc/a.pem", "/etc/b.pem"}},
		},
		{
			name:    "implied by client certificate",
			args:    []string{"mw-tls-cert=c.pem", "mw-tls-key=k.pem", "mw-tls-insecure=true"},
			enabled: true,
			want:    ClientConfig{CertFile: "c.pem", KeyFile: "k.pem", InsecureSkipVerify: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok, err := FromConfig(config.NewFromArgs(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, ok)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestFromConfig_Errors(t *testing.T) {
	_, _, err := FromConfig(config.NewFromArgs([]string{"mw-tls-cert=c.pem"}))
	assert.ErrorIs(t, err, errors.ErrInvalidConfigValue)
	assert.True(t, errors.IsInvalid(err))

	_, _, err = FromConfig(config.NewFromArgs([]string{"mw-tls=perhaps"}))
	assert.Error(t, err)

	_, ok, err := FromConfig(nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile, caFile := setupTestFiles(t)

	t.Run("system pool only", func(t *testing.T) {
		cfg, err := LoadClientTLSConfig(ClientConfig{})
		require.NoError(t, err)
		assert.NotNil(t, cfg.RootCAs)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
		assert.Empty(t, cfg.Certificates)
		assert.False(t, cfg.InsecureSkipVerify)
	})

	t.Run("additional CA and client certificate", func(t *testing.T) {
		cfg, err := LoadClientTLSConfig(ClientConfig{
			CAFiles:    []string{caFile},
			CertFile:   certFile,
			KeyFile:    keyFile,
			MinVersion: "1.3",
		})
		require.NoError(t, err)
		assert.Len(t, cfg.Certificates, 1)
		assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	})

	t.Run("insecure", func(t *testing.T) {
		cfg, err := LoadClientTLSConfig(ClientConfig{InsecureSkipVerify: true})
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
	})
}

func TestLoadClientTLSConfig_Errors(t *testing.T) {
	certFile, _, _ := setupTestFiles(t)
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0644))

	tests := []struct {
		name string
		cfg  ClientConfig
	}{
		{"missing CA", ClientConfig{CAFiles: []string{filepath.Join(dir, "absent.pem")}}},
		{"invalid CA", ClientConfig{CAFiles: []string{garbage}}},
		{"missing key", ClientConfig{CertFile: certFile, KeyFile: filepath.Join(dir, "absent.pem")}},
		{"mismatched pair", ClientConfig{CertFile: certFile, KeyFile: garbage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadClientTLSConfig(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestFromConfigTLS(t *testing.T) {
	cfg, err := FromConfigTLS(config.New())
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, _, caFile := setupTestFiles(t)
	cfg, err = FromConfigTLS(config.NewFromArgs([]string{"mw-tls-ca=" + caFile}))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotNil(t, cfg.RootCAs)
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion(""))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.0"))
}
