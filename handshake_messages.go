package dtls

import (
	"encoding/binary"
)

// messageClientHello is the ClientHello body (RFC 5246 §7.4.1.2, RFC 6347 §4.2.2).
type messageClientHello struct {
	version            ProtocolVersion
	random             handshakeRandom
	cookie             []byte
	sessionID          []byte
	cipherSuiteIDs     []CipherSuiteID
	compressionMethods []byte
	extensions         []extension
}

func (messageClientHello) handshakeType() HandshakeType { return HandshakeTypeClientHello }

func (m *messageClientHello) Marshal() ([]byte, error) {
	rnd, err := m.random.Marshal()
	if err != nil {
		return nil, err
	}
	out := []byte{m.version.Major, m.version.Minor}
	out = append(out, rnd...)
	out = append(out, byte(len(m.sessionID)))
	out = append(out, m.sessionID...)
	out = append(out, byte(len(m.cookie)))
	out = append(out, m.cookie...)

	suites := make([]byte, 2+2*len(m.cipherSuiteIDs))
	binary.BigEndian.PutUint16(suites, uint16(2*len(m.cipherSuiteIDs)))
	for i, id := range m.cipherSuiteIDs {
		binary.BigEndian.PutUint16(suites[2+2*i:], uint16(id))
	}
	out = append(out, suites...)

	out = append(out, byte(len(m.compressionMethods)))
	out = append(out, m.compressionMethods...)

	extRaw, err := marshalExtensions(m.extensions)
	if err != nil {
		return nil, err
	}
	return append(out, extRaw...), nil
}

func (m *messageClientHello) Unmarshal(data []byte) error {
	if len(data) < 2+handshakeRandomLength+1 {
		return errBufferTooSmall
	}
	m.version = ProtocolVersion{data[0], data[1]}
	offset := 2
	if err := m.random.Unmarshal(data[offset:]); err != nil {
		return err
	}
	offset += handshakeRandomLength

	sessLen := int(data[offset])
	offset++
	if len(data) < offset+sessLen {
		return errBufferTooSmall
	}
	m.sessionID = append([]byte{}, data[offset:offset+sessLen]...)
	offset += sessLen

	if len(data) < offset+1 {
		return errBufferTooSmall
	}
	cookieLen := int(data[offset])
	offset++
	if len(data) < offset+cookieLen {
		return errBufferTooSmall
	}
	m.cookie = append([]byte{}, data[offset:offset+cookieLen]...)
	offset += cookieLen

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	suitesLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+suitesLen {
		return errBufferTooSmall
	}
	for i := 0; i < suitesLen; i += 2 {
		m.cipherSuiteIDs = append(m.cipherSuiteIDs, CipherSuiteID(binary.BigEndian.Uint16(data[offset+i:])))
	}
	offset += suitesLen

	if len(data) < offset+1 {
		return errBufferTooSmall
	}
	compLen := int(data[offset])
	offset++
	if len(data) < offset+compLen {
		return errBufferTooSmall
	}
	m.compressionMethods = append([]byte{}, data[offset:offset+compLen]...)
	offset += compLen

	exts, err := unmarshalExtensions(data[offset:])
	if err != nil {
		return err
	}
	m.extensions = exts
	return nil
}

// messageServerHello is the ServerHello body.
type messageServerHello struct {
	version           ProtocolVersion
	random            handshakeRandom
	sessionID         []byte
	cipherSuiteID     CipherSuiteID
	compressionMethod byte
	extensions        []extension
}

func (messageServerHello) handshakeType() HandshakeType { return HandshakeTypeServerHello }

func (m *messageServerHello) Marshal() ([]byte, error) {
	rnd, err := m.random.Marshal()
	if err != nil {
		return nil, err
	}
	out := []byte{m.version.Major, m.version.Minor}
	out = append(out, rnd...)
	out = append(out, byte(len(m.sessionID)))
	out = append(out, m.sessionID...)
	suite := make([]byte, 2)
	binary.BigEndian.PutUint16(suite, uint16(m.cipherSuiteID))
	out = append(out, suite...)
	out = append(out, m.compressionMethod)

	extRaw, err := marshalExtensions(m.extensions)
	if err != nil {
		return nil, err
	}
	return append(out, extRaw...), nil
}

func (m *messageServerHello) Unmarshal(data []byte) error {
	if len(data) < 2+handshakeRandomLength+1 {
		return errBufferTooSmall
	}
	m.version = ProtocolVersion{data[0], data[1]}
	offset := 2
	if err := m.random.Unmarshal(data[offset:]); err != nil {
		return err
	}
	offset += handshakeRandomLength

	sessLen := int(data[offset])
	offset++
	if len(data) < offset+sessLen+3 {
		return errBufferTooSmall
	}
	m.sessionID = append([]byte{}, data[offset:offset+sessLen]...)
	offset += sessLen

	m.cipherSuiteID = CipherSuiteID(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	m.compressionMethod = data[offset]
	offset++

	exts, err := unmarshalExtensions(data[offset:])
	if err != nil {
		return err
	}
	m.extensions = exts
	return nil
}

// messageHelloVerifyRequest carries the stateless cookie (RFC 6347 §4.2.1).
type messageHelloVerifyRequest struct {
	version ProtocolVersion
	cookie  []byte
}

func (messageHelloVerifyRequest) handshakeType() HandshakeType { return HandshakeTypeHelloVerifyRequest }

func (m *messageHelloVerifyRequest) Marshal() ([]byte, error) {
	out := []byte{m.version.Major, m.version.Minor, byte(len(m.cookie))}
	return append(out, m.cookie...), nil
}

func (m *messageHelloVerifyRequest) Unmarshal(data []byte) error {
	if len(data) < 3 {
		return errBufferTooSmall
	}
	m.version = ProtocolVersion{data[0], data[1]}
	cookieLen := int(data[2])
	if len(data) < 3+cookieLen {
		return errBufferTooSmall
	}
	m.cookie = append([]byte{}, data[3:3+cookieLen]...)
	return nil
}

// messageCertificate carries an opaque certificate_list (RFC 5246 §7.4.2)
// or, with the raw-public-key certificate type, a single SPKI blob.
type messageCertificate struct {
	certificate [][]byte
}

func (messageCertificate) handshakeType() HandshakeType { return HandshakeTypeCertificate }

func (m *messageCertificate) Marshal() ([]byte, error) {
	var body []byte
	for _, c := range m.certificate {
		entry := make([]byte, 3+len(c))
		putUint24(entry, uint32(len(c)))
		copy(entry[3:], c)
		body = append(body, entry...)
	}
	out := make([]byte, 3+len(body))
	putUint24(out, uint32(len(body)))
	copy(out[3:], body)
	return out, nil
}

func (m *messageCertificate) Unmarshal(data []byte) error {
	if len(data) < 3 {
		return errBufferTooSmall
	}
	total := int(uint24(data))
	data = data[3:]
	if len(data) < total {
		return errBufferTooSmall
	}
	data = data[:total]
	m.certificate = nil
	for len(data) > 0 {
		if len(data) < 3 {
			return errBufferTooSmall
		}
		l := int(uint24(data))
		data = data[3:]
		if len(data) < l {
			return errBufferTooSmall
		}
		m.certificate = append(m.certificate, append([]byte{}, data[:l]...))
		data = data[l:]
	}
	return nil
}

// messageServerKeyExchange carries ECDHE parameters and a signature
// (certificate suites), an identity hint (PSK), or both (ECDHE_PSK).
type messageServerKeyExchange struct {
	identityHint     []byte
	namedGroup       NamedGroup
	publicKey        []byte
	signatureScheme  uint16
	signature        []byte
	hasSignature     bool
}

func (messageServerKeyExchange) handshakeType() HandshakeType { return HandshakeTypeServerKeyExchange }

func (m *messageServerKeyExchange) Marshal() ([]byte, error) {
	var out []byte
	if m.identityHint != nil {
		out = append(out, byte(len(m.identityHint)>>8), byte(len(m.identityHint)))
		out = append(out, m.identityHint...)
	}
	if m.publicKey != nil {
		out = append(out, 3 /* named_curve */, byte(m.namedGroup>>8), byte(m.namedGroup))
		out = append(out, byte(len(m.publicKey)))
		out = append(out, m.publicKey...)
		if m.hasSignature {
			out = append(out, byte(m.signatureScheme>>8), byte(m.signatureScheme))
			sigLen := make([]byte, 2)
			binary.BigEndian.PutUint16(sigLen, uint16(len(m.signature)))
			out = append(out, sigLen...)
			out = append(out, m.signature...)
		}
	}
	return out, nil
}

func (m *messageServerKeyExchange) Unmarshal(data []byte) error {
	// Parsing is disambiguated by the negotiated cipher suite, which the
	// caller (flight handler) already knows; see parseServerKeyExchange.
	return errDecodeError
}

// parseServerKeyExchange decodes a ServerKeyExchange body given which
// parts the negotiated suite is expected to carry.
func parseServerKeyExchange(data []byte, isPSK, isECDHE bool) (*messageServerKeyExchange, error) {
	m := &messageServerKeyExchange{}
	offset := 0
	if isPSK {
		if len(data) < offset+2 {
			return nil, errBufferTooSmall
		}
		hintLen := int(data[offset])<<8 | int(data[offset+1])
		offset += 2
		if len(data) < offset+hintLen {
			return nil, errBufferTooSmall
		}
		m.identityHint = append([]byte{}, data[offset:offset+hintLen]...)
		offset += hintLen
	}
	if isECDHE {
		if len(data) < offset+4 {
			return nil, errBufferTooSmall
		}
		// curve_type(1) + named_curve(2)
		m.namedGroup = NamedGroup(uint16(data[offset+1])<<8 | uint16(data[offset+2]))
		offset += 3
		pubLen := int(data[offset])
		offset++
		if len(data) < offset+pubLen {
			return nil, errBufferTooSmall
		}
		m.publicKey = append([]byte{}, data[offset:offset+pubLen]...)
		offset += pubLen

		if offset < len(data) {
			if len(data) < offset+4 {
				return nil, errBufferTooSmall
			}
			m.signatureScheme = uint16(data[offset])<<8 | uint16(data[offset+1])
			offset += 2
			sigLen := int(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
			if len(data) < offset+sigLen {
				return nil, errBufferTooSmall
			}
			m.signature = append([]byte{}, data[offset:offset+sigLen]...)
			m.hasSignature = true
		}
	}
	return m, nil
}

// messageCertificateRequest requests client authentication.
type messageCertificateRequest struct {
	certificateTypes []ClientCertificateType
}

func (messageCertificateRequest) handshakeType() HandshakeType { return HandshakeTypeCertificateRequest }

func (m *messageCertificateRequest) Marshal() ([]byte, error) {
	out := []byte{byte(len(m.certificateTypes))}
	for _, t := range m.certificateTypes {
		out = append(out, byte(t))
	}
	// empty supported_signature_algorithms + certificate_authorities
	out = append(out, 0, 0, 0, 0)
	return out, nil
}

func (m *messageCertificateRequest) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	for _, b := range data[1 : 1+n] {
		m.certificateTypes = append(m.certificateTypes, ClientCertificateType(b))
	}
	return nil
}

// messageServerHelloDone has no body.
type messageServerHelloDone struct{}

func (messageServerHelloDone) handshakeType() HandshakeType { return HandshakeTypeServerHelloDone }
func (m *messageServerHelloDone) Marshal() ([]byte, error)  { return nil, nil }
func (m *messageServerHelloDone) Unmarshal(data []byte) error {
	return nil
}

// messageClientKeyExchange carries the client's ECDHE public key (1-byte
// length prefix) or, for plain PSK, the uint16-length-prefixed PSK
// identity (an empty body when no identity is configured). Unmarshal
// decodes the ECDHE form only.
type messageClientKeyExchange struct {
	publicKey     []byte
	identityHint  []byte
}

func (messageClientKeyExchange) handshakeType() HandshakeType { return HandshakeTypeClientKeyExchange }

func (m *messageClientKeyExchange) Marshal() ([]byte, error) {
	var out []byte
	if m.identityHint != nil {
		out = append(out, byte(len(m.identityHint)>>8), byte(len(m.identityHint)))
		out = append(out, m.identityHint...)
	}
	if m.publicKey != nil {
		out = append(out, byte(len(m.publicKey)))
		out = append(out, m.publicKey...)
	}
	return out, nil
}

func (m *messageClientKeyExchange) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	m.publicKey = append([]byte{}, data[1:1+n]...)
	return nil
}

// messageCertificateVerify carries the client's signature over the
// transcript (RFC 5246 §7.4.8).
type messageCertificateVerify struct {
	signatureScheme uint16
	signature       []byte
}

func (messageCertificateVerify) handshakeType() HandshakeType { return HandshakeTypeCertificateVerify }

func (m *messageCertificateVerify) Marshal() ([]byte, error) {
	out := []byte{byte(m.signatureScheme >> 8), byte(m.signatureScheme)}
	sigLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sigLen, uint16(len(m.signature)))
	out = append(out, sigLen...)
	return append(out, m.signature...), nil
}

func (m *messageCertificateVerify) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	m.signatureScheme = uint16(data[0])<<8 | uint16(data[1])
	sigLen := int(binary.BigEndian.Uint16(data[2:]))
	if len(data) < 4+sigLen {
		return errBufferTooSmall
	}
	m.signature = append([]byte{}, data[4:4+sigLen]...)
	return nil
}

// messageFinished carries the 12-byte verify_data (RFC 5246 §7.4.9).
type messageFinished struct {
	verifyData []byte
}

func (messageFinished) handshakeType() HandshakeType { return HandshakeTypeFinished }

func (m *messageFinished) Marshal() ([]byte, error) {
	return append([]byte{}, m.verifyData...), nil
}

func (m *messageFinished) Unmarshal(data []byte) error {
	m.verifyData = append([]byte{}, data...)
	return nil
}
