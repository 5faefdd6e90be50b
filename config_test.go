package dtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func selfSignedCertForTest(t *testing.T, priv *ecdsa.PrivateKey) *x509.Certificate {
	template := &x509.Certificate{SerialNumber: big.NewInt(1), PublicKey: &priv.PublicKey}
	raw, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	assert.NoError(t, err)
	cert, err := x509.ParseCertificate(raw)
	assert.NoError(t, err)
	return cert
}

func TestValidateConfigRejectsNilConfig(t *testing.T) {
	assert.ErrorIs(t, validateConfig(nil), errNoConfigProvided)
}

func TestValidateConfigRequiresPSKOrCertificateOrSkipVerify(t *testing.T) {
	err := validateConfig(&Config{})
	assert.ErrorIs(t, err, errPSKAndCertificateNotConfigured)
}

func TestValidateConfigAllowsPSKOnly(t *testing.T) {
	cfg := &Config{PSK: func([]string, []byte) ([]byte, error) { return []byte("key"), nil }}
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigAllowsInsecureSkipVerifyButStillNeedsASuite(t *testing.T) {
	cfg := &Config{InsecureSkipVerify: true}
	err := validateConfig(cfg)
	assert.ErrorIs(t, err, errServerMustHaveCertificate)
}

func TestValidateConfigRejectsCertificateWithoutPrivateKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)

	cert := selfSignedCertForTest(t, priv)
	cfg := &Config{Certificate: cert}
	assert.ErrorIs(t, validateConfig(cfg), errInvalidPrivateKey)
}

func TestValidateConfigAcceptsCertificateAndPrivateKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)

	cert := selfSignedCertForTest(t, priv)
	cfg := &Config{Certificate: cert, PrivateKey: priv}
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigRejectsNegativeMaxFragmentLength(t *testing.T) {
	cfg := &Config{PSK: func([]string, []byte) ([]byte, error) { return []byte("key"), nil }, MaxFragmentLength: -1}
	assert.ErrorIs(t, validateConfig(cfg), errDecodeError)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultRetransmissionTimeout, cfg.retransmissionTimeout())
	assert.Equal(t, DefaultMaxRetransmissions, cfg.maxRetransmissions())
	assert.Equal(t, DefaultMaxConnections, cfg.maxConnections())
	assert.Equal(t, DefaultStaleSessionTimeout, cfg.staleSessionTimeout())
	assert.Equal(t, DefaultMaxDeferredProcessedIncomingRecordsSize, cfg.maxDeferredSize())
	assert.Equal(t, DefaultCookieTTL, cfg.cookieTTL())
}

func TestConfigOverridesTakePrecedenceOverDefaults(t *testing.T) {
	cfg := &Config{RetransmissionTimeout: time.Second, MaxRetransmissions: 9, MaxConnections: 1, StaleSessionTimeout: time.Hour, MaxDeferredProcessedIncomingRecordsSize: 1, CookieTTL: time.Hour}
	assert.Equal(t, time.Second, cfg.retransmissionTimeout())
	assert.Equal(t, 9, cfg.maxRetransmissions())
	assert.Equal(t, 1, cfg.maxConnections())
	assert.Equal(t, time.Hour, cfg.staleSessionTimeout())
	assert.Equal(t, 1, cfg.maxDeferredSize())
	assert.Equal(t, time.Hour, cfg.cookieTTL())
}
