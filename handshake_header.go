package dtls

// HandshakeType identifies a handshake message (RFC 5246 §7.4).
type HandshakeType uint8

// Handshake message types used by a DTLS 1.2 full or abbreviated
// handshake (spec §6).
const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeHelloVerifyRequest HandshakeType = 3
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeTypeHelloRequest:
		return "HelloRequest"
	case HandshakeTypeClientHello:
		return "ClientHello"
	case HandshakeTypeServerHello:
		return "ServerHello"
	case HandshakeTypeHelloVerifyRequest:
		return "HelloVerifyRequest"
	case HandshakeTypeCertificate:
		return "Certificate"
	case HandshakeTypeServerKeyExchange:
		return "ServerKeyExchange"
	case HandshakeTypeCertificateRequest:
		return "CertificateRequest"
	case HandshakeTypeServerHelloDone:
		return "ServerHelloDone"
	case HandshakeTypeCertificateVerify:
		return "CertificateVerify"
	case HandshakeTypeClientKeyExchange:
		return "ClientKeyExchange"
	case HandshakeTypeFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// handshakeHeaderSize is type(1)+length(3)+message_seq(2)+fragment_offset(3)+fragment_length(3).
const handshakeHeaderSize = 12

// HandshakeHeader is the per-message header carried by every handshake
// fragment (spec §3, §6).
type HandshakeHeader struct {
	Type            HandshakeType
	Length          uint32 // uint24: total message length
	MessageSequence uint16
	FragmentOffset  uint32 // uint24
	FragmentLength  uint32 // uint24
}

func (h *HandshakeHeader) Marshal() ([]byte, error) {
	out := make([]byte, handshakeHeaderSize)
	out[0] = byte(h.Type)
	putUint24(out[1:], h.Length)
	out[4] = byte(h.MessageSequence >> 8)
	out[5] = byte(h.MessageSequence)
	putUint24(out[6:], h.FragmentOffset)
	putUint24(out[9:], h.FragmentLength)
	return out, nil
}

func (h *HandshakeHeader) Unmarshal(data []byte) error {
	if len(data) < handshakeHeaderSize {
		return errBufferTooSmall
	}
	h.Type = HandshakeType(data[0])
	h.Length = uint24(data[1:])
	h.MessageSequence = uint16(data[4])<<8 | uint16(data[5])
	h.FragmentOffset = uint24(data[6:])
	h.FragmentLength = uint24(data[9:])
	return nil
}

// handshakeMessagePayload is one decoded handshake message body.
type handshakeMessagePayload interface {
	handshakeType() HandshakeType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// handshakeMessage is the Content implementation carrying a single
// (possibly fragmented-on-the-wire) handshake message. Fragmentation
// itself is the Flight Assembler's concern (spec §4.2); this type carries
// exactly the bytes of one record's fragment.
type handshakeMessage struct {
	header  HandshakeHeader
	raw     []byte // fragment body only, length == header.FragmentLength
	payload handshakeMessagePayload
}

func (h *handshakeMessage) ContentType() ContentType { return ContentTypeHandshake }

func (h *handshakeMessage) Marshal() ([]byte, error) {
	headerRaw, err := h.header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, h.raw...), nil
}

func (h *handshakeMessage) Unmarshal(data []byte) error {
	if err := h.header.Unmarshal(data); err != nil {
		return err
	}
	end := handshakeHeaderSize + int(h.header.FragmentLength)
	if len(data) < end {
		return errBufferTooSmall
	}
	h.raw = append([]byte{}, data[handshakeHeaderSize:end]...)
	return nil
}
