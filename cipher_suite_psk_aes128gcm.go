package dtls

import (
	"crypto"
	"sync/atomic"
)

// cipherSuitePSKWithAES128GCMSHA256 is the pre-shared-key suite: no
// certificate exchange, key agreement via the PSK alone (spec §6 PSK
// cipher suite path).
type cipherSuitePSKWithAES128GCMSHA256 struct {
	gcm atomic.Value
}

func (c *cipherSuitePSKWithAES128GCMSHA256) String() string {
	return TLS_PSK_WITH_AES_128_GCM_SHA256.String()
}
func (c *cipherSuitePSKWithAES128GCMSHA256) ID() CipherSuiteID {
	return TLS_PSK_WITH_AES_128_GCM_SHA256
}
func (c *cipherSuitePSKWithAES128GCMSHA256) certificateType() ClientCertificateType {
	return ClientCertificateTypeX509 // unused: PSK suites never exchange certificates
}
func (c *cipherSuitePSKWithAES128GCMSHA256) hashFunc() crypto.Hash { return crypto.SHA256 }
func (c *cipherSuitePSKWithAES128GCMSHA256) isPSK() bool           { return true }
func (c *cipherSuitePSKWithAES128GCMSHA256) isInitialized() bool   { return c.gcm.Load() != nil }

func (c *cipherSuitePSKWithAES128GCMSHA256) init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
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

func (c *cipherSuitePSKWithAES128GCMSHA256) encrypt(header *RecordLayerHeader, payload []byte) ([]byte, error) {
	g, ok := c.gcm.Load().(*cryptoGCM)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return g.encrypt(header, payload)
}

func (c *cipherSuitePSKWithAES128GCMSHA256) decrypt(in []byte, cidLen int) ([]byte, error) {
	g, ok := c.gcm.Load().(*cryptoGCM)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return g.decrypt(in, cidLen)
}

// prfPSKPreMasterSecret builds the plain-PSK pre_master_secret (RFC 4279
// §2): a uint16 psk_length followed by psk_length zero bytes, then the
// uint16-prefixed key.
func prfPSKPreMasterSecret(psk []byte) []byte {
	out := make([]byte, 0, 4+2*len(psk))
	out = append(out, byte(len(psk)>>8), byte(len(psk)))
	for range psk {
		out = append(out, 0)
	}
	out = append(out, byte(len(psk)>>8), byte(len(psk)))
	out = append(out, psk...)
	return out
}

// prfECDHEPSKPreMasterSecret builds the ECDHE_PSK pre_master_secret
// (RFC 5489 §2): the ECDHE shared secret followed by the uint16-prefixed
// PSK, used when an endpoint wants forward secrecy with PSK authentication.
func prfECDHEPSKPreMasterSecret(sharedSecret, psk []byte) []byte {
	out := make([]byte, 0, 2+len(sharedSecret)+2+len(psk))
	out = append(out, byte(len(sharedSecret)>>8), byte(len(sharedSecret)))
	out = append(out, sharedSecret...)
	out = append(out, byte(len(psk)>>8), byte(len(psk)))
	out = append(out, psk...)
	return out
}
