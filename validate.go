package dtls

import "errors"

var errPSKAndCertificateNotConfigured = errors.New("dtls: config has neither a PSK callback nor a certificate")

// validateConfig rejects a Config that can never produce a usable
// handshake before any connection state is allocated for it.
func validateConfig(c *Config) error {
	if c == nil {
		return errNoConfigProvided
	}
	if c.PSK == nil && c.Certificate == nil && c.CertificateVerifier == nil && c.RawKeyVerifier == nil && !c.InsecureSkipVerify {
		return errPSKAndCertificateNotConfigured
	}
	if c.Certificate != nil && c.PrivateKey == nil {
		return errInvalidPrivateKey
	}
	if _, err := parseCipherSuites(c.SupportedCipherSuites, c.includeCertificateSuites(), c.includePSKSuites()); err != nil {
		return err
	}
	if c.MaxFragmentLength < 0 {
		return errDecodeError
	}
	return nil
}
