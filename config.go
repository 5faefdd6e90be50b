package dtls

import (
	"crypto"
	"crypto/x509"
	"io"
	"time"

	"github.com/pion/logging"
)

// ClientAuthType mirrors crypto/tls.ClientAuthType for the subset DTLS 1.2
// client authentication needs.
type ClientAuthType int

// Client authentication policies (spec §6 client_authentication).
const (
	NoClientCert ClientAuthType = iota
	RequestClientCert
	RequireAnyClientCert
)

// ExtendedMasterSecretType controls RFC 7627 negotiation policy.
type ExtendedMasterSecretType int

// Extended Master Secret policies.
const (
	ExtendedMasterSecretTypeDisable ExtendedMasterSecretType = iota
	ExtendedMasterSecretTypeAllow
	ExtendedMasterSecretTypeRequire
)

// ConnectionIDGenerator produces a local Connection ID. A nil generator
// disables CID support. A generator returning a zero-length slice
// advertises capability without using one ("supported-but-empty-id").
type ConnectionIDGenerator func() []byte

// PSKCallback looks up the pre-shared key for an identity, optionally
// scoped to a set of server names (external collaborator, spec §6).
type PSKCallback func(serverNames []string, identity []byte) ([]byte, error)

// CertificateVerifier validates a peer's X.509 certificate chain for the
// given usage (external collaborator, spec §6).
type CertificateVerifier func(chain []*x509.Certificate, usage x509.ExtKeyUsage) error

// RawKeyVerifier validates a peer's raw public key SPKI (external
// collaborator, spec §6).
type RawKeyVerifier func(spki []byte) error

// SessionTicket is the snapshot of a Session sufficient to recreate it
// for resumption (spec §3).
type SessionTicket struct {
	ID           []byte
	MasterSecret []byte
	CipherSuite  CipherSuiteID
	ServerName   string
}

// SessionCache stores and looks up previously established sessions
// (external collaborator, spec §6). A server Puts the ticket of each
// completed full handshake under its session id and Gets by the id a
// ClientHello offers; a client Puts and Gets its own ticket under
// []byte(Config.ServerName).
type SessionCache interface {
	Get(sessionID []byte) (*SessionTicket, bool)
	Put(sessionID []byte, ticket *SessionTicket)
}

// Config configures a DTLS client or server (spec §6). After being passed
// to Client, Server or Listen it must not be modified.
type Config struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey

	ClientAuth ClientAuthType

	SupportedCipherSuites  []CipherSuiteID
	TrustCertificateTypes  []ClientCertificateType
	IdentityCertificateTypes []ClientCertificateType
	SupportedNamedGroups   []NamedGroup

	PSK               PSKCallback
	PSKIdentityHint   []byte

	CertificateVerifier CertificateVerifier
	RawKeyVerifier      RawKeyVerifier

	ExtendedMasterSecret ExtendedMasterSecretType

	ServerName string
	SNIEnabled bool

	MaxFragmentLength int

	// PathMTU bounds the size of any single UDP datagram this endpoint
	// emits during the handshake; a handshake message larger than this
	// budget is split across multiple records by the Flight Assembler
	// (spec §4.2).
	PathMTU int

	ConnectionIDGenerator ConnectionIDGenerator

	SessionCache          SessionCache
	UseNoServerSessionID   bool

	RetransmissionTimeout time.Duration
	MaxRetransmissions    int

	MaxConnections int
	StaleSessionTimeout time.Duration

	MaxDeferredProcessedIncomingRecordsSize int

	CookieTTL time.Duration

	LoggerFactory logging.LoggerFactory
	KeyLogWriter  io.Writer

	InsecureSkipVerify bool
}

// Defaults applied when a Config field is left zero (spec §6).
const (
	DefaultRetransmissionTimeout                       = 400 * time.Millisecond
	DefaultMaxRetransmissions                          = 2
	DefaultMaxConnections                               = 4096
	DefaultStaleSessionTimeout                          = 5 * time.Minute
	DefaultMaxDeferredProcessedIncomingRecordsSize      = 4096
	DefaultCookieTTL                                    = 30 * time.Second
	DefaultPathMTU                                      = 1280
)

func (c *Config) retransmissionTimeout() time.Duration {
	if c.RetransmissionTimeout > 0 {
		return c.RetransmissionTimeout
	}
	return DefaultRetransmissionTimeout
}

func (c *Config) maxRetransmissions() int {
	if c.MaxRetransmissions > 0 {
		return c.MaxRetransmissions
	}
	return DefaultMaxRetransmissions
}

func (c *Config) maxConnections() int {
	if c.MaxConnections > 0 {
		return c.MaxConnections
	}
	return DefaultMaxConnections
}

func (c *Config) staleSessionTimeout() time.Duration {
	if c.StaleSessionTimeout > 0 {
		return c.StaleSessionTimeout
	}
	return DefaultStaleSessionTimeout
}

func (c *Config) maxDeferredSize() int {
	if c.MaxDeferredProcessedIncomingRecordsSize > 0 {
		return c.MaxDeferredProcessedIncomingRecordsSize
	}
	return DefaultMaxDeferredProcessedIncomingRecordsSize
}

func (c *Config) cookieTTL() time.Duration {
	if c.CookieTTL > 0 {
		return c.CookieTTL
	}
	return DefaultCookieTTL
}

func (c *Config) loggerFactory() logging.LoggerFactory {
	if c.LoggerFactory != nil {
		return c.LoggerFactory
	}
	return logging.NewDefaultLoggerFactory()
}

func (c *Config) pathMTU() int {
	if c.PathMTU > 0 {
		return c.PathMTU
	}
	return DefaultPathMTU
}

func (c *Config) includeCertificateSuites() bool {
	return c.Certificate != nil || c.CertificateVerifier != nil || c.RawKeyVerifier != nil
}

func (c *Config) includePSKSuites() bool {
	return c.PSK != nil
}
