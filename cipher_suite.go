package dtls

import "crypto"

// CipherSuiteID identifies a TLS/DTLS cipher suite by its IANA registry
// value (spec §4.4c).
type CipherSuiteID uint16

// Cipher suites this endpoint can negotiate.
const (
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256       CipherSuiteID = 0xc02b
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256         CipherSuiteID = 0xc02f
	TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256 CipherSuiteID = 0xcca9
	TLS_PSK_WITH_AES_128_GCM_SHA256               CipherSuiteID = 0x00a8
	TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256         CipherSuiteID = 0xc037
)

func (id CipherSuiteID) String() string {
	switch id {
	case TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"
	case TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	case TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256"
	case TLS_PSK_WITH_AES_128_GCM_SHA256:
		return "TLS_PSK_WITH_AES_128_GCM_SHA256"
	case TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256:
		return "TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256"
	default:
		return "Unknown"
	}
}

// cipherSuite is the pluggable interface each negotiated suite
// implements: key-schedule initialization plus record AEAD/encrypt.
type cipherSuite interface {
	String() string
	ID() CipherSuiteID
	certificateType() ClientCertificateType
	hashFunc() crypto.Hash
	isPSK() bool
	isInitialized() bool

	// init derives per-direction keys from the master secret and randoms
	// and readies the suite for encrypt/decrypt.
	init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error

	encrypt(header *RecordLayerHeader, payload []byte) ([]byte, error)
	decrypt(in []byte, cidLen int) ([]byte, error)
}

func cipherSuiteForID(id CipherSuiteID) cipherSuite {
	switch id {
	case TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:
		return &cipherSuiteECDHEECDSAWithAES128GCMSHA256{}
	case TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return &cipherSuiteECDHERSAWithAES128GCMSHA256{}
	case TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:
		return &cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256{}
	case TLS_PSK_WITH_AES_128_GCM_SHA256:
		return &cipherSuitePSKWithAES128GCMSHA256{}
	default:
		return nil
	}
}

func defaultCipherSuites() []CipherSuiteID {
	return []CipherSuiteID{
		TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		TLS_PSK_WITH_AES_128_GCM_SHA256,
	}
}

func allCipherSuites() []CipherSuiteID {
	return []CipherSuiteID{
		TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		TLS_PSK_WITH_AES_128_GCM_SHA256,
		TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256,
	}
}

// parseCipherSuites validates the configured (or default) suite list
// against what the Config can actually serve and returns the concrete
// cipherSuite instances in preference order (spec §4.4c).
func parseCipherSuites(userSelected []CipherSuiteID, includeCertificateSuites, includePSKSuites bool) ([]cipherSuite, error) {
	ids := userSelected
	if len(ids) == 0 {
		ids = defaultCipherSuites()
	}

	var out []cipherSuite
	for _, id := range ids {
		cs := cipherSuiteForID(id)
		if cs == nil {
			continue
		}
		if cs.isPSK() && !includePSKSuites {
			continue
		}
		if !cs.isPSK() && !includeCertificateSuites {
			continue
		}
		out = append(out, cs)
	}
	if len(out) == 0 {
		if !includeCertificateSuites && !includePSKSuites {
			return nil, errServerMustHaveCertificate
		}
		return nil, errCipherSuiteNoIntersection
	}
	return out, nil
}

// negotiateCipherSuite picks the first suite in the server's preference
// order that the client also offered (spec §4.4c).
func negotiateCipherSuite(serverSuites []cipherSuite, clientOffered []CipherSuiteID) (cipherSuite, bool) {
	offered := make(map[CipherSuiteID]struct{}, len(clientOffered))
	for _, id := range clientOffered {
		offered[id] = struct{}{}
	}
	for _, cs := range serverSuites {
		if _, ok := offered[cs.ID()]; ok {
			return cs, true
		}
	}
	return nil, false
}
