package dtls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
)

const (
	crypto_gcmNonceLength  = 12
	crypto_gcmTagLength    = 16
	crypto_gcmFixedIVLength = 4
)

// cryptoGCM implements AES-GCM record protection shared by the GCM-based
// suites (spec §3 payload protection).
type cryptoGCM struct {
	localGCM        cipher.AEAD
	localWriteIV    []byte
	remoteGCM       cipher.AEAD
	remoteWriteIV   []byte
}

func newCryptoGCM(localKey, localWriteIV, remoteKey, remoteWriteIV []byte) (*cryptoGCM, error) {
	localBlock, err := aes.NewCipher(localKey)
	if err != nil {
		return nil, err
	}
	localGCM, err := cipher.NewGCM(localBlock)
	if err != nil {
		return nil, err
	}

	remoteBlock, err := aes.NewCipher(remoteKey)
	if err != nil {
		return nil, err
	}
	remoteGCM, err := cipher.NewGCM(remoteBlock)
	if err != nil {
		return nil, err
	}

	return &cryptoGCM{
		localGCM:      localGCM,
		localWriteIV:  localWriteIV,
		remoteGCM:     remoteGCM,
		remoteWriteIV: remoteWriteIV,
	}, nil
}

// generateAEADAdditionalData builds the AEAD associated data: the record
// header with content length substituted for the plaintext length (RFC
// 5246 §6.2.3.3), extended with epoch/seq per RFC 9146 when CID is in use.
func generateAEADAdditionalData(h *RecordLayerHeader, payloadLen int) []byte {
	var additionalData []byte
	if h.ConnectionID != nil {
		additionalData = make([]byte, 0, 1+8+2+1+len(h.ConnectionID)+2)
		additionalData = append(additionalData, byte(ContentTypeConnectionID))
		seq := make([]byte, 8)
		putUint48(seq[2:], h.SequenceNumber)
		seq[0] = byte(h.Epoch >> 8)
		seq[1] = byte(h.Epoch)
		additionalData = append(additionalData, seq...)
		additionalData = append(additionalData, byte(ContentTypeConnectionID))
		additionalData = append(additionalData, byte(len(h.ConnectionID)))
		additionalData = append(additionalData, h.ConnectionID...)
	} else {
		additionalData = make([]byte, 13)
		additionalData[0] = byte(h.ContentType)
		additionalData[1] = h.ProtocolVersion.Major
		additionalData[2] = h.ProtocolVersion.Minor
		additionalData[3] = byte(h.Epoch >> 8)
		additionalData[4] = byte(h.Epoch)
		putUint48(additionalData[5:], h.SequenceNumber)
	}
	lengthOffset := len(additionalData)
	additionalData = append(additionalData, 0, 0)
	additionalData[lengthOffset] = byte(payloadLen >> 8)
	additionalData[lengthOffset+1] = byte(payloadLen)
	return additionalData
}

func (g *cryptoGCM) encrypt(header *RecordLayerHeader, raw []byte) ([]byte, error) {
	payload := raw[header.Size():]
	additionalData := generateAEADAdditionalData(header, len(payload))

	nonce := make([]byte, crypto_gcmNonceLength)
	copy(nonce, g.localWriteIV[:crypto_gcmFixedIVLength])
	if _, err := rand.Read(nonce[crypto_gcmFixedIVLength:]); err != nil {
		return nil, err
	}

	encryptedPayload := g.localGCM.Seal(nil, nonce, payload, additionalData)
	encryptedPayload = append(nonce[crypto_gcmFixedIVLength:], encryptedPayload...)

	header.ContentLen = uint16(len(encryptedPayload))
	headerRaw, err := header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, encryptedPayload...), nil
}

func (g *cryptoGCM) decrypt(in []byte, cidLen int) ([]byte, error) {
	var h RecordLayerHeader
	if err := h.Unmarshal(in, cidLen); err != nil {
		return nil, err
	}

	body := in[h.Size():]
	if len(body) <= crypto_gcmFixedIVLength+crypto_gcmTagLength {
		return nil, errDecryptPacket
	}

	nonce := make([]byte, crypto_gcmNonceLength)
	copy(nonce, g.remoteWriteIV[:crypto_gcmFixedIVLength])
	copy(nonce[crypto_gcmFixedIVLength:], body[:crypto_gcmFixedIVLength])

	additionalData := generateAEADAdditionalData(&h, len(body)-crypto_gcmFixedIVLength-g.remoteGCM.Overhead())

	decrypted, err := g.remoteGCM.Open(nil, nonce, body[crypto_gcmFixedIVLength:], additionalData)
	if err != nil {
		return nil, errDecryptPacket
	}
	return append(in[:h.Size()], decrypted...), nil
}
