package crypto

import (
	"crypto/tls"

	"github.com/pkg/errors"
)

// Functions

// NewPublicTLSConfig returns a TLS config that is to be used
// when exposing ports to the public Internet. It defines very
// strict defaults but assumes that available system cert pools
// will be used when verifying certificates.
func NewPublicTLSConfig(certPath string, keyPath string) (*tls.Config, error) {

	// Define very strict defaults for public TLS usage.
	config := &tls.Config{
		Certificates:             make([]tls.Certificate, 1),
		InsecureSkipVerify:       false,
		MinVersion:               tls.VersionTLS12,
		CurvePreferences:         []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
		PreferServerCipherSuites: true,
	}

	// Put certificate specified via arguments as the
	// only certificate into config.
	var err error
	config.Certificates[0], err = tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS cert and key")
	}

	return config, nil
}

// NewClientTLSConfig returns the TLS config the initiator
// uses after its STARTTLS upgrade. Mailbox bridges commonly
// present self-signed certificates, so verification can be
// switched off via the insecure flag.
func NewClientTLSConfig(serverName string, insecure bool) *tls.Config {

	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS12,
	}
}
