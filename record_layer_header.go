package dtls

import "encoding/binary"

// ProtocolVersion is the two-byte DTLS version field (RFC 4346 §6.2.1).
type ProtocolVersion struct {
	Major, Minor uint8
}

// Equal reports whether v and x name the same protocol version.
func (v ProtocolVersion) Equal(x ProtocolVersion) bool {
	return v.Major == x.Major && v.Minor == x.Minor
}

// DTLS versions. DTLS wire versions are the one's complement of the
// nominal version, per RFC 6347 §4.1: 1.2 is {0xfe, 0xfd}.
var (
	ProtocolVersion1_0 = ProtocolVersion{0xfe, 0xff}
	ProtocolVersion1_2 = ProtocolVersion{0xfe, 0xfd}
)

const (
	fixedRecordLayerHeaderSize = 13
	maxSequenceNumber          = 0x0000FFFFFFFFFFFF
)

// RecordLayerHeader is the fixed record header plus an optional
// Connection ID (RFC 9146), whose presence is signalled by ContentType
// being ContentTypeConnectionID.
type RecordLayerHeader struct {
	ContentType     ContentType
	ConnectionID    []byte // nil unless ContentType == ContentTypeConnectionID
	Epoch           uint16
	SequenceNumber  uint64 // uint48 on the wire
	ProtocolVersion ProtocolVersion
	ContentLen      uint16
}

// Size returns the marshaled header length including any CID.
func (r *RecordLayerHeader) Size() int {
	return fixedRecordLayerHeaderSize + len(r.ConnectionID)
}

// Marshal encodes the header. When ConnectionID is non-nil the header is
// written in tls12_cid form: type=25, followed by the CID bytes between
// the sequence number and the length field.
func (r *RecordLayerHeader) Marshal() ([]byte, error) {
	if r.SequenceNumber > maxSequenceNumber {
		return nil, errSequenceNumberOverflow
	}

	out := make([]byte, r.Size())
	contentType := r.ContentType
	if r.ConnectionID != nil {
		contentType = ContentTypeConnectionID
	}
	out[0] = byte(contentType)
	out[1] = r.ProtocolVersion.Major
	out[2] = r.ProtocolVersion.Minor
	binary.BigEndian.PutUint16(out[3:], r.Epoch)
	putUint48(out[5:], r.SequenceNumber)

	offset := 11
	if r.ConnectionID != nil {
		copy(out[offset:], r.ConnectionID)
		offset += len(r.ConnectionID)
	}
	binary.BigEndian.PutUint16(out[offset:], r.ContentLen)
	return out, nil
}

// Unmarshal decodes a record header. cidLen must equal the length of CID
// the caller expects on this connection (0 disables CID parsing); it is
// supplied by the caller because CID length is out-of-band, negotiated
// during the handshake and not self-describing on the wire.
func (r *RecordLayerHeader) Unmarshal(data []byte, cidLen int) error {
	if len(data) < fixedRecordLayerHeaderSize {
		return errBufferTooSmall
	}
	r.ContentType = ContentType(data[0])
	r.ProtocolVersion.Major = data[1]
	r.ProtocolVersion.Minor = data[2]
	r.Epoch = binary.BigEndian.Uint16(data[3:])
	r.SequenceNumber = uint48(data[5:11])

	offset := 11
	if r.ContentType == ContentTypeConnectionID {
		if cidLen == 0 || len(data) < offset+cidLen+2 {
			return errBufferTooSmall
		}
		r.ConnectionID = append([]byte{}, data[offset:offset+cidLen]...)
		offset += cidLen
	} else {
		r.ConnectionID = nil
	}

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	r.ContentLen = binary.BigEndian.Uint16(data[offset:])

	if !r.ProtocolVersion.Equal(ProtocolVersion1_0) && !r.ProtocolVersion.Equal(ProtocolVersion1_2) {
		return errUnsupportedProtocolVersion
	}
	return nil
}
