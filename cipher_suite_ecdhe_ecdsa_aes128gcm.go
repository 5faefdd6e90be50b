package dtls

import (
	"crypto"
	"sync/atomic"
)

// cipherSuiteECDHEECDSAWithAES128GCMSHA256 is the default certificate-based
// suite: ECDHE key agreement, ECDSA signatures, AES-128-GCM record
// protection, SHA-256 PRF hash.
type cipherSuiteECDHEECDSAWithAES128GCMSHA256 struct {
	gcm atomic.Value // *cryptoGCM
}

func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) String() string {
	return TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256.String()
}
func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) ID() CipherSuiteID {
	return TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
}
func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) certificateType() ClientCertificateType {
	return ClientCertificateTypeX509
}
func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) hashFunc() crypto.Hash { return crypto.SHA256 }
func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) isPSK() bool           { return false }
func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) isInitialized() bool {
	return c.gcm.Load() != nil
}

func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
	const keyLength = 16
	const ivLength = crypto_gcmFixedIVLength

	keyBlock, err := prfKeyBlock(masterSecret, clientRandom, serverRandom, prfKeyBlockLengths{KeyLength: keyLength, IVLength: ivLength}, crypto.SHA256)
	if err != nil {
		return err
	}
	clientWriteKey := keyBlock[:keyLength]
	serverWriteKey := keyBlock[keyLength : keyLength*2]
	clientWriteIV := keyBlock[keyLength*2 : keyLength*2+ivLength]
	serverWriteIV := keyBlock[keyLength*2+ivLength : keyLength*2+ivLength*2]

	var gcm *cryptoGCM
	if isClient {
		gcm, err = newCryptoGCM(clientWriteKey, clientWriteIV, serverWriteKey, serverWriteIV)
	} else {
		gcm, err = newCryptoGCM(serverWriteKey, serverWriteIV, clientWriteKey, clientWriteIV)
	}
	if err != nil {
		return err
	}
	c.gcm.Store(gcm)
	return nil
}

func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) encrypt(header *RecordLayerHeader, payload []byte) ([]byte, error) {
	g, ok := c.gcm.Load().(*cryptoGCM)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return g.encrypt(header, payload)
}

func (c *cipherSuiteECDHEECDSAWithAES128GCMSHA256) decrypt(in []byte, cidLen int) ([]byte, error) {
	g, ok := c.gcm.Load().(*cryptoGCM)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return g.decrypt(in, cidLen)
}

// cipherSuiteECDHERSAWithAES128GCMSHA256 is identical key-schedule-wise to
// its ECDSA sibling; only the signature algorithm used in
// ServerKeyExchange/CertificateVerify differs, which is handled by the
// handshaker rather than this type.
type cipherSuiteECDHERSAWithAES128GCMSHA256 struct {
	cipherSuiteECDHEECDSAWithAES128GCMSHA256
}

func (c *cipherSuiteECDHERSAWithAES128GCMSHA256) String() string {
	return TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256.String()
}
func (c *cipherSuiteECDHERSAWithAES128GCMSHA256) ID() CipherSuiteID {
	return TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256
}
