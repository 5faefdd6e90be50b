package dtls

// ContentType is the DTLS record content type (RFC 4346 §6.2.1).
type ContentType uint8

// Content types defined by RFC 5246 plus the tls12_cid type from RFC 9146.
const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
	ContentTypeConnectionID     ContentType = 25
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "ChangeCipherSpec"
	case ContentTypeAlert:
		return "Alert"
	case ContentTypeHandshake:
		return "Handshake"
	case ContentTypeApplicationData:
		return "ApplicationData"
	case ContentTypeConnectionID:
		return "ConnectionID"
	default:
		return "Unknown"
	}
}

// Content is a DTLS record payload: ChangeCipherSpec, Alert, Handshake or
// ApplicationData.
type Content interface {
	ContentType() ContentType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// changeCipherSpec is the single-byte message that marks an epoch boundary.
type changeCipherSpec struct{}

func (c *changeCipherSpec) ContentType() ContentType { return ContentTypeChangeCipherSpec }

func (c *changeCipherSpec) Marshal() ([]byte, error) {
	return []byte{0x01}, nil
}

func (c *changeCipherSpec) Unmarshal(data []byte) error {
	if len(data) != 1 || data[0] != 0x01 {
		return errInvalidCipherSpec
	}
	return nil
}

// applicationData is opaque data handed to/from the application.
type applicationData struct {
	data []byte
}

func (a *applicationData) ContentType() ContentType { return ContentTypeApplicationData }

func (a *applicationData) Marshal() ([]byte, error) {
	return append([]byte{}, a.data...), nil
}

func (a *applicationData) Unmarshal(data []byte) error {
	a.data = append([]byte{}, data...)
	return nil
}
