package dtls

import "encoding/binary"

// RecordLayer is one on-the-wire DTLS record: header plus content.
// Multiple records belonging to one flight may be concatenated into a
// single UDP datagram (spec §4.1); unpackDatagram splits them back apart.
type RecordLayer struct {
	Header  RecordLayerHeader
	Content Content
}

// Marshal encodes the record. Content must already be set; the header's
// ContentType and ContentLen are derived from it.
func (r *RecordLayer) Marshal() ([]byte, error) {
	contentRaw, err := r.Content.Marshal()
	if err != nil {
		return nil, err
	}
	r.Header.ContentLen = uint16(len(contentRaw))
	if r.Header.ConnectionID == nil {
		r.Header.ContentType = r.Content.ContentType()
	}

	headerRaw, err := r.Header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, contentRaw...), nil
}

// Unmarshal decodes a record. cidLen is the CID length negotiated for
// this connection (0 if CID is disabled).
func (r *RecordLayer) Unmarshal(data []byte, cidLen int) error {
	if err := r.Header.Unmarshal(data, cidLen); err != nil {
		return err
	}
	innerType := r.Header.ContentType
	if r.Header.ConnectionID != nil {
		// The real content type travels inside the (decrypted) payload
		// trailer for tls12_cid records; callers that need it (only after
		// AEAD-decrypt) read it from the last payload byte themselves.
		innerType = ContentTypeApplicationData
	}

	body := data[r.Header.Size():]
	switch innerType {
	case ContentTypeChangeCipherSpec:
		r.Content = &changeCipherSpec{}
	case ContentTypeAlert:
		r.Content = &Alert{}
	case ContentTypeHandshake:
		r.Content = &handshakeMessage{}
	case ContentTypeApplicationData:
		r.Content = &applicationData{}
	default:
		return errInvalidContentType
	}
	return r.Content.Unmarshal(body)
}

// unpackDatagram splits one UDP datagram into the individual DTLS records
// it carries (spec §4.1: "records of one flight may be concatenated").
func unpackDatagram(buf []byte, cidLen int) ([][]byte, error) {
	var out [][]byte
	for offset := 0; offset != len(buf); {
		remaining := len(buf) - offset
		if remaining <= fixedRecordLayerHeaderSize {
			return nil, errInvalidPacketLength
		}
		headerLen := fixedRecordLayerHeaderSize
		if ContentType(buf[offset]) == ContentTypeConnectionID {
			headerLen += cidLen
		}
		if remaining < headerLen+2 {
			return nil, errInvalidPacketLength
		}
		bodyLen := int(binary.BigEndian.Uint16(buf[offset+headerLen-2:]))
		pktLen := headerLen + bodyLen
		if offset+pktLen > len(buf) {
			return nil, errInvalidPacketLength
		}
		out = append(out, buf[offset:offset+pktLen])
		offset += pktLen
	}
	return out, nil
}
