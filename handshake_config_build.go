package dtls

import (
	"net"
)

// newHandshakeConfig turns a user-facing *Config into the handshakeConfig
// one handshakeFSM run needs, resolving cipher suites and logging the way
// both Client and the server's Connector require (spec §6 Config ->
// Handshaker wiring). cookieGen/remoteAddr are nil/unused on the client
// side, where there is no stateless cookie exchange to perform.
func newHandshakeConfig(config *Config, isClient bool, cookieGen *cookieGenerator, remoteAddr net.Addr) (*handshakeConfig, error) {
	suites, err := parseCipherSuites(config.SupportedCipherSuites, config.includeCertificateSuites(), config.includePSKSuites())
	if err != nil {
		return nil, err
	}

	var cert *x509CertPair
	if config.Certificate != nil {
		if config.PrivateKey == nil {
			return nil, errInvalidPrivateKey
		}
		cert = &x509CertPair{certificate: [][]byte{config.Certificate.Raw}, privateKey: config.PrivateKey}
	}

	log := config.loggerFactory().NewLogger("dtls")

	var keyLog interface {
		Write(p []byte) (int, error)
	}
	if config.KeyLogWriter != nil {
		keyLog = config.KeyLogWriter
	}

	// supportedCertificateTypes governs the certificate_types field of an
	// outbound CertificateRequest: what the server will accept from a
	// client, i.e. TrustCertificateTypes, not the types this endpoint
	// offers as its own identity.
	certTypes := config.TrustCertificateTypes
	if len(certTypes) == 0 {
		certTypes = config.IdentityCertificateTypes
	}

	return &handshakeConfig{
		localPSKCallback:            config.PSK,
		localPSKIdentityHint:        config.PSKIdentityHint,
		localCipherSuites:           suites,
		extendedMasterSecret:        config.ExtendedMasterSecret,
		serverName:                  config.ServerName,
		supportedNamedGroups:        config.SupportedNamedGroups,
		supportedCertificateTypes:   certTypes,
		clientAuth:                  config.ClientAuth,
		certificate:                 cert,
		insecureSkipVerify:          config.InsecureSkipVerify,
		certificateVerifier:         config.CertificateVerifier,
		rawKeyVerifier:              config.RawKeyVerifier,
		sessionCache:                config.SessionCache,
		connectionIDGenerator:       config.ConnectionIDGenerator,
		retransmitInterval:          config.retransmissionTimeout(),
		maxRetransmissions:          config.maxRetransmissions(),
		log:                         log,
		keyLogWriter:                keyLog,
		cookieGen:                   cookieGen,
		remoteAddr:                  remoteAddr,
	}, nil
}

// serverHandshakeConfig is newHandshakeConfig specialised for the
// Connector, which always has a cookie generator and a concrete peer
// address by the time it starts a handshakeFSM (spec §4.6 Connector).
func serverHandshakeConfig(config *Config, cookieGen *cookieGenerator, remoteAddr net.Addr) (*handshakeConfig, error) {
	return newHandshakeConfig(config, false, cookieGen, remoteAddr)
}
