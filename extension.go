package dtls

import "encoding/binary"

// ExtensionType identifies a Hello extension we negotiate (spec §4.4).
type ExtensionType uint16

// Extension types consumed by this package.
const (
	ExtensionServerName            ExtensionType = 0
	ExtensionSupportedGroups       ExtensionType = 10
	ExtensionMaxFragmentLength     ExtensionType = 1
	ExtensionExtendedMasterSecret  ExtensionType = 23
	ExtensionUseSRTP               ExtensionType = 14
	ExtensionConnectionID          ExtensionType = 54
	ExtensionClientCertificateType ExtensionType = 19
	ExtensionServerCertificateType ExtensionType = 20
)

// extension is a generic (type, opaque body) extension. Hello messages
// carry a list of these; specific extensions are decoded/encoded by the
// helpers below rather than dedicated structs, matching the volume of
// extension kinds this endpoint actually interprets.
type extension struct {
	Type ExtensionType
	Body []byte
}

func marshalExtensions(exts []extension) ([]byte, error) {
	var body []byte
	for _, e := range exts {
		hdr := make([]byte, 4)
		binary.BigEndian.PutUint16(hdr, uint16(e.Type))
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(e.Body)))
		body = append(body, hdr...)
		body = append(body, e.Body...)
	}
	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out, nil
}

func unmarshalExtensions(data []byte) ([]extension, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 2 {
		return nil, errBufferTooSmall
	}
	totalLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < totalLen {
		return nil, errBufferTooSmall
	}
	data = data[:totalLen]

	var out []extension
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, errBufferTooSmall
		}
		typ := ExtensionType(binary.BigEndian.Uint16(data))
		length := int(binary.BigEndian.Uint16(data[2:]))
		if len(data) < 4+length {
			return nil, errBufferTooSmall
		}
		out = append(out, extension{Type: typ, Body: append([]byte{}, data[4:4+length]...)})
		data = data[4+length:]
	}
	return out, nil
}

func findExtension(exts []extension, t ExtensionType) (extension, bool) {
	for _, e := range exts {
		if e.Type == t {
			return e, true
		}
	}
	return extension{}, false
}

func serverNameExtension(name string) extension {
	// ServerNameList: list_len(2) type(1)=0 name_len(2) name
	body := make([]byte, 5+len(name))
	binary.BigEndian.PutUint16(body, uint16(3+len(name)))
	body[2] = 0
	binary.BigEndian.PutUint16(body[3:], uint16(len(name)))
	copy(body[5:], name)
	return extension{Type: ExtensionServerName, Body: body}
}

func parseServerNameExtension(body []byte) (string, error) {
	if len(body) < 5 {
		return "", errDecodeError
	}
	nameLen := int(binary.BigEndian.Uint16(body[3:5]))
	if len(body) < 5+nameLen {
		return "", errDecodeError
	}
	return string(body[5 : 5+nameLen]), nil
}

func supportedGroupsExtension(groups []NamedGroup) extension {
	body := make([]byte, 2+2*len(groups))
	binary.BigEndian.PutUint16(body, uint16(2*len(groups)))
	for i, g := range groups {
		binary.BigEndian.PutUint16(body[2+2*i:], uint16(g))
	}
	return extension{Type: ExtensionSupportedGroups, Body: body}
}

func parseSupportedGroupsExtension(body []byte) ([]NamedGroup, error) {
	if len(body) < 2 {
		return nil, errDecodeError
	}
	n := int(binary.BigEndian.Uint16(body))
	if len(body) < 2+n {
		return nil, errDecodeError
	}
	var groups []NamedGroup
	for i := 0; i < n; i += 2 {
		groups = append(groups, NamedGroup(binary.BigEndian.Uint16(body[2+i:])))
	}
	return groups, nil
}

func connectionIDExtension(cid []byte) extension {
	return extension{Type: ExtensionConnectionID, Body: append([]byte{byte(len(cid))}, cid...)}
}

func parseConnectionIDExtension(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, errDecodeError
	}
	n := int(body[0])
	if len(body) < 1+n {
		return nil, errDecodeError
	}
	return append([]byte{}, body[1:1+n]...), nil
}

func maxFragmentLengthExtension(code byte) extension {
	return extension{Type: ExtensionMaxFragmentLength, Body: []byte{code}}
}

func extendedMasterSecretExtension() extension {
	return extension{Type: ExtensionExtendedMasterSecret, Body: nil}
}
