package dtls

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

const handshakeRandomLength = 32

// handshakeRandom is the 32-byte Random struct shared by ClientHello and
// ServerHello (gmt_unix_time ‖ random_bytes), RFC 5246 §7.4.1.2.
type handshakeRandom struct {
	gmtUnixTime uint32
	randomBytes [28]byte
}

func (h *handshakeRandom) populate() error {
	h.gmtUnixTime = uint32(time.Now().Unix())
	_, err := rand.Read(h.randomBytes[:])
	return err
}

func (h *handshakeRandom) Marshal() ([]byte, error) {
	out := make([]byte, handshakeRandomLength)
	binary.BigEndian.PutUint32(out, h.gmtUnixTime)
	copy(out[4:], h.randomBytes[:])
	return out, nil
}

func (h *handshakeRandom) Unmarshal(data []byte) error {
	if len(data) < handshakeRandomLength {
		return errBufferTooSmall
	}
	h.gmtUnixTime = binary.BigEndian.Uint32(data)
	copy(h.randomBytes[:], data[4:handshakeRandomLength])
	return nil
}
