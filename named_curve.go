package dtls

import (
	"crypto/ecdh"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// NamedGroup is an elliptic curve group usable for ECDHE (RFC 8422).
type NamedGroup uint16

// Named groups this endpoint supports, in preference order.
const (
	NamedGroupX25519 NamedGroup = 0x001d
	NamedGroupP256   NamedGroup = 0x0017
	NamedGroupP384   NamedGroup = 0x0018
)

func defaultNamedGroups() []NamedGroup {
	return []NamedGroup{NamedGroupX25519, NamedGroupP256, NamedGroupP384}
}

// negotiateNamedGroup picks the group per spec §4.4d: if the client omits
// the supported_groups extension, use the server's top preference;
// otherwise the first client-offered group the server also supports.
func negotiateNamedGroup(clientOffered []NamedGroup, serverSupported []NamedGroup) (NamedGroup, bool) {
	if len(serverSupported) == 0 {
		serverSupported = defaultNamedGroups()
	}
	if len(clientOffered) == 0 {
		return serverSupported[0], true
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

// namedCurveKeypair is a local ECDHE keypair for one named group.
type namedCurveKeypair struct {
	group      NamedGroup
	publicKey  []byte
	privateKey []byte
	ecdhKey    *ecdh.PrivateKey // nil for x25519, which uses curve25519 directly
}

func generateKeypair(group NamedGroup) (*namedCurveKeypair, error) {
	switch group {
	case NamedGroupX25519:
		var priv [32]byte
		if _, err := rand.Read(priv[:]); err != nil {
			return nil, err
		}
		pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
		if err != nil {
			return nil, err
		}
		return &namedCurveKeypair{group: group, privateKey: priv[:], publicKey: pub}, nil
	case NamedGroupP256, NamedGroupP384:
		curve := ecdh.P256()
		if group == NamedGroupP384 {
			curve = ecdh.P384()
		}
		priv, err := curve.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &namedCurveKeypair{
			group:      group,
			ecdhKey:    priv,
			publicKey:  priv.PublicKey().Bytes(),
			privateKey: priv.Bytes(),
		}, nil
	default:
		return nil, errNoSupportedNamedGroup
	}
}

func (k *namedCurveKeypair) sharedSecret(peerPublic []byte) ([]byte, error) {
	switch k.group {
	case NamedGroupX25519:
		var priv [32]byte
		copy(priv[:], k.privateKey)
		return curve25519.X25519(priv[:], peerPublic)
	case NamedGroupP256, NamedGroupP384:
		curve := ecdh.P256()
		if k.group == NamedGroupP384 {
			curve = ecdh.P384()
		}
		peer, err := curve.NewPublicKey(peerPublic)
		if err != nil {
			return nil, err
		}
		return k.ecdhKey.ECDH(peer)
	default:
		return nil, errNoSupportedNamedGroup
	}
}
