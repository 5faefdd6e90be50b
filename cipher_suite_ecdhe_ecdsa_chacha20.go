package dtls

import (
	"crypto"
	"crypto/cipher"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"
)

// cryptoCC20P1305 implements record protection for the ChaCha20-Poly1305
// suite. Unlike GCM its nonce is the fixed 12-byte write IV XORed with the
// sequence number (RFC 7905 §2); there is no explicit per-record nonce
// prefix on the wire.
type cryptoCC20P1305 struct {
	localAEAD     cipher.AEAD
	localWriteIV  []byte
	remoteAEAD    cipher.AEAD
	remoteWriteIV []byte
}

func newCryptoCC20P1305(localKey, localWriteIV, remoteKey, remoteWriteIV []byte) (*cryptoCC20P1305, error) {
	localAEAD, err := chacha20poly1305.New(localKey)
	if err != nil {
		return nil, err
	}
	remoteAEAD, err := chacha20poly1305.New(remoteKey)
	if err != nil {
		return nil, err
	}
	return &cryptoCC20P1305{
		localAEAD:     localAEAD,
		localWriteIV:  localWriteIV,
		remoteAEAD:    remoteAEAD,
		remoteWriteIV: remoteWriteIV,
	}, nil
}

func xorNonce(writeIV []byte, epoch uint16, seq uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce, writeIV)
	seqBytes := make([]byte, chacha20poly1305.NonceSize)
	seqBytes[4] = byte(epoch >> 8)
	seqBytes[5] = byte(epoch)
	putUint48(seqBytes[6:], seq)
	for i := range nonce {
		nonce[i] ^= seqBytes[i]
	}
	return nonce
}

func (c *cryptoCC20P1305) encrypt(header *RecordLayerHeader, raw []byte) ([]byte, error) {
	payload := raw[header.Size():]
	additionalData := generateAEADAdditionalData(header, len(payload))
	nonce := xorNonce(c.localWriteIV, header.Epoch, header.SequenceNumber)

	encryptedPayload := c.localAEAD.Seal(nil, nonce, payload, additionalData)

	header.ContentLen = uint16(len(encryptedPayload))
	headerRaw, err := header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, encryptedPayload...), nil
}

func (c *cryptoCC20P1305) decrypt(in []byte, cidLen int) ([]byte, error) {
	var h RecordLayerHeader
	if err := h.Unmarshal(in, cidLen); err != nil {
		return nil, err
	}
	body := in[h.Size():]
	if len(body) <= c.remoteAEAD.Overhead() {
		return nil, errDecryptPacket
	}
	nonce := xorNonce(c.remoteWriteIV, h.Epoch, h.SequenceNumber)
	additionalData := generateAEADAdditionalData(&h, len(body)-c.remoteAEAD.Overhead())

	decrypted, err := c.remoteAEAD.Open(nil, nonce, body, additionalData)
	if err != nil {
		return nil, errDecryptPacket
	}
	return append(in[:h.Size()], decrypted...), nil
}

// cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256 trades AES-GCM for
// ChaCha20-Poly1305, useful on platforms without AES hardware
// acceleration (spec §6).
type cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256 struct {
	cc20 atomic.Value // *cryptoCC20P1305
}

func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) String() string {
	return TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256.String()
}
func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) ID() CipherSuiteID {
	return TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256
}
func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) certificateType() ClientCertificateType {
	return ClientCertificateTypeX509
}
func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) hashFunc() crypto.Hash {
	return crypto.SHA256
}
func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) isPSK() bool { return false }
func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) isInitialized() bool {
	return c.cc20.Load() != nil
}

func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) init(masterSecret, clientRandom, serverRandom []byte, isClient bool) error {
	const keyLength = chacha20poly1305.KeySize
	const ivLength = chacha20poly1305.NonceSize

	keyBlock, err := prfKeyBlock(masterSecret, clientRandom, serverRandom, prfKeyBlockLengths{KeyLength: keyLength, IVLength: ivLength}, crypto.SHA256)
	if err != nil {
		return err
	}
	clientWriteKey := keyBlock[:keyLength]
	serverWriteKey := keyBlock[keyLength : keyLength*2]
	clientWriteIV := keyBlock[keyLength*2 : keyLength*2+ivLength]
	serverWriteIV := keyBlock[keyLength*2+ivLength : keyLength*2+ivLength*2]

	var cc20 *cryptoCC20P1305
	if isClient {
		cc20, err = newCryptoCC20P1305(clientWriteKey, clientWriteIV, serverWriteKey, serverWriteIV)
	} else {
		cc20, err = newCryptoCC20P1305(serverWriteKey, serverWriteIV, clientWriteKey, clientWriteIV)
	}
	if err != nil {
		return err
	}
	c.cc20.Store(cc20)
	return nil
}

func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) encrypt(header *RecordLayerHeader, payload []byte) ([]byte, error) {
	cc, ok := c.cc20.Load().(*cryptoCC20P1305)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return cc.encrypt(header, payload)
}

func (c *cipherSuiteECDHEECDSAWithChaCha20Poly1305SHA256) decrypt(in []byte, cidLen int) ([]byte, error) {
	cc, ok := c.cc20.Load().(*cryptoCC20P1305)
	if !ok {
		return nil, errCipherSuiteNotInit
	}
	return cc.decrypt(in, cidLen)
}
