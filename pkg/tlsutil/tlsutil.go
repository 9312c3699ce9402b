// Package tlsutil builds client TLS configurations for middleware
// connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Configuration keys read by FromConfig
const (
	KeyEnabled    = "mw-tls"
	KeyCAFiles    = "mw-tls-ca"
	KeyCertFile   = "mw-tls-cert"
	KeyKeyFile    = "mw-tls-key"
	KeyInsecure   = "mw-tls-insecure"
	KeyMinVersion = "mw-tls-min-version"
)

// ClientConfig describes the TLS settings of a middleware client.
// The system CA bundle is always trusted; CAFiles are additional CAs.
type ClientConfig struct {
	CAFiles            []string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
	MinVersion         string
}

// FromConfig reads the mw-tls keys. TLS is on when mw-tls is true or a CA
// or client certificate is given; ok reports whether it is.
func FromConfig(cfg *config.Config) (c ClientConfig, ok bool, err error) {
	if cfg == nil {
		return c, false, nil
	}

	enabled, err := cfg.BooleanValue(KeyEnabled, false)
	if err != nil {
		return c, false, errors.WrapInvalid(err, "tlsutil", "FromConfig", "read "+KeyEnabled)
	}
	if c.InsecureSkipVerify, err = cfg.BooleanValue(KeyInsecure, false); err != nil {
		return c, false, errors.WrapInvalid(err, "tlsutil", "FromConfig", "read "+KeyInsecure)
	}

	for _, f := range strings.Split(cfg.Value(KeyCAFiles, ""), ",") {
		if f = strings.TrimSpace(f); f != "" {
			c.CAFiles = append(c.CAFiles, f)
		}
	}
	c.CertFile = cfg.Value(KeyCertFile, "")
	c.KeyFile = cfg.Value(KeyKeyFile, "")
	c.MinVersion = cfg.Value(KeyMinVersion, "")

	if (c.CertFile == "") != (c.KeyFile == "") {
		return c, false, errors.WrapInvalid(
			errors.Newf(errors.ErrInvalidConfigValue, "%s and %s must be given together", KeyCertFile, KeyKeyFile),
			"tlsutil", "FromConfig", "read client certificate")
	}

	ok = enabled || len(c.CAFiles) > 0 || c.CertFile != ""
	return c, ok, nil
}

// LoadClientTLSConfig creates a tls.Config from c. A client certificate
// is presented when CertFile and KeyFile are set.
func LoadClientTLSConfig(c ClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(c.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range c.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil", "LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	tlsConfig.RootCAs = rootCAs

	// Operators opt into this through mw-tls-insecure
	tlsConfig.InsecureSkipVerify = c.InsecureSkipVerify

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// FromConfigTLS is FromConfig followed by LoadClientTLSConfig. It returns
// nil when TLS is off.
func FromConfigTLS(cfg *config.Config) (*tls.Config, error) {
	c, ok, err := FromConfig(cfg)
	if err != nil || !ok {
		return nil, err
	}
	return LoadClientTLSConfig(c)
}

// parseTLSVersion returns tls.VersionTLS12 unless "1.3" is asked for
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
