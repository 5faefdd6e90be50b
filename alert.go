package dtls

import "fmt"

// AlertLevel is the severity of an Alert record (RFC 5246 §7.2).
type AlertLevel uint8

// Alert levels.
const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription identifies the reason for an Alert.
type AlertDescription uint8

// Alert descriptions used by this package (RFC 5246 §7.2, subset relevant
// to DTLS 1.2 without renegotiation or session tickets).
const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertHandshakeFailure       AlertDescription = 40
	AlertDecodeError            AlertDescription = 50
	AlertUnknownPSKIdentity     AlertDescription = 115
	AlertInternalError          AlertDescription = 80
	AlertNoRenegotiation        AlertDescription = 100
	AlertCertificateUnknown     AlertDescription = 46
	AlertBadCertificate         AlertDescription = 42
	AlertInsufficientSecurity   AlertDescription = 71
	AlertIllegalParameter       AlertDescription = 47
	AlertAccessDenied           AlertDescription = 49
	AlertNoCertificate          AlertDescription = 41
	AlertUserCanceled           AlertDescription = 90
	AlertNoApplicationProtocol  AlertDescription = 120
)

func (d AlertDescription) String() string {
	switch d {
	case AlertCloseNotify:
		return "close_notify"
	case AlertUnexpectedMessage:
		return "unexpected_message"
	case AlertDecryptError:
		return "decrypt_error"
	case AlertProtocolVersion:
		return "protocol_version"
	case AlertHandshakeFailure:
		return "handshake_failure"
	case AlertDecodeError:
		return "decode_error"
	case AlertUnknownPSKIdentity:
		return "unknown_psk_identity"
	case AlertInternalError:
		return "internal_error"
	case AlertNoRenegotiation:
		return "no_renegotiation"
	case AlertCertificateUnknown:
		return "certificate_unknown"
	case AlertBadCertificate:
		return "bad_certificate"
	case AlertInsufficientSecurity:
		return "insufficient_security"
	case AlertIllegalParameter:
		return "illegal_parameter"
	case AlertAccessDenied:
		return "access_denied"
	case AlertNoCertificate:
		return "no_certificate"
	case AlertUserCanceled:
		return "user_canceled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Alert is the content of an Alert record.
type Alert struct {
	Level       AlertLevel
	Description AlertDescription
}

func (a *Alert) ContentType() ContentType { return ContentTypeAlert }

func (a *Alert) Marshal() ([]byte, error) {
	return []byte{byte(a.Level), byte(a.Description)}, nil
}

func (a *Alert) Unmarshal(data []byte) error {
	if len(data) != 2 {
		return errBufferTooSmall
	}
	a.Level = AlertLevel(data[0])
	a.Description = AlertDescription(data[1])
	return nil
}

func (a *Alert) String() string {
	level := "warning"
	if a.Level == AlertLevelFatal {
		level = "fatal"
	}
	return fmt.Sprintf("%s: %s", level, a.Description)
}

// alertError wraps a received or sent Alert as an error so it composes
// with errors.Is/errors.As.
type alertError struct{ *Alert }

func (e *alertError) Error() string { return fmt.Sprintf("alert: %s", e.Alert.String()) }

func (e *alertError) IsFatalOrCloseNotify() bool {
	return e.Level == AlertLevelFatal || e.Description == AlertCloseNotify
}
