package dtls

// ClientCertificateType identifies the form of identity a peer presents:
// X.509 certificate chain or a bare raw public key (RFC 7250).
type ClientCertificateType uint8

// Certificate types negotiated via the client_certificate_type /
// server_certificate_type extensions.
const (
	ClientCertificateTypeX509         ClientCertificateType = 0
	ClientCertificateTypeRawPublicKey ClientCertificateType = 2
)

func (c ClientCertificateType) String() string {
	switch c {
	case ClientCertificateTypeX509:
		return "X509"
	case ClientCertificateTypeRawPublicKey:
		return "RawPublicKey"
	default:
		return "Unknown"
	}
}

// negotiateCertificateType intersects the client's offered certificate
// types (if any extension was sent) with the server's supported types,
// falling back to X.509 when the client is silent (spec §4.4e).
func negotiateCertificateType(clientOffered []ClientCertificateType, serverSupported []ClientCertificateType) (ClientCertificateType, bool) {
	if len(serverSupported) == 0 {
		serverSupported = []ClientCertificateType{ClientCertificateTypeX509}
	}
	if len(clientOffered) == 0 {
		for _, t := range serverSupported {
			if t == ClientCertificateTypeX509 {
				return ClientCertificateTypeX509, true
			}
		}
		return 0, false
	}
	for _, offered := range clientOffered {
		for _, supported := range serverSupported {
			if offered == supported {
				return offered, true
			}
		}
	}
	return 0, false
}
