package dtls

import (
	"crypto"
	"crypto/hmac"
	"hash"
)

const masterSecretLength = 48

// prfPHash is the TLS 1.2 P_hash function (RFC 5246 §5): HMAC-driven
// keyed expansion used for both the master secret and the key block.
func prfPHash(secret, seed []byte, requestedLength int, h crypto.Hash) ([]byte, error) {
	hmacSHA := func() hash.Hash {
		return hmac.New(h.New, secret)
	}

	aCur := seed
	out := make([]byte, 0, requestedLength)
	for len(out) < requestedLength {
		mac := hmacSHA()
		mac.Write(aCur)
		aCur = mac.Sum(nil)

		mac = hmacSHA()
		mac.Write(aCur)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:requestedLength], nil
}

// prfMasterSecret derives the 48-byte master secret from the ECDHE/PSK
// pre-master secret and the hello randoms (RFC 5246 §8.1).
func prfMasterSecret(preMasterSecret, clientRandom, serverRandom []byte, h crypto.Hash) ([]byte, error) {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return prfPHash(preMasterSecret, append([]byte("master secret"), seed...), masterSecretLength, h)
}

// prfExtendedMasterSecret derives the master secret per RFC 7627 using the
// session_hash of the handshake transcript up to and including
// ClientKeyExchange instead of the hello randoms.
func prfExtendedMasterSecret(preMasterSecret, sessionHash []byte, h crypto.Hash) ([]byte, error) {
	return prfPHash(preMasterSecret, append([]byte("extended master secret"), sessionHash...), masterSecretLength, h)
}

// prfKeyBlockLengths describes how many key-schedule bytes a suite needs.
type prfKeyBlockLengths struct {
	MACLength  int
	KeyLength  int
	IVLength   int
}

// prfKeyBlock derives the per-direction MAC/cipher keys and IVs from the
// master secret and randoms (RFC 5246 §6.3). GCM suites use MACLength=0.
func prfKeyBlock(masterSecret, clientRandom, serverRandom []byte, lengths prfKeyBlockLengths, h crypto.Hash) ([]byte, error) {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	seed = append([]byte("key expansion"), seed...)
	totalLength := 2*lengths.MACLength + 2*lengths.KeyLength + 2*lengths.IVLength
	return prfPHash(masterSecret, seed, totalLength, h)
}

// prfVerifyData computes the 12-byte Finished verify_data (RFC 5246
// §7.4.9): PRF(master_secret, label, session_hash_or_md5sha)[0:12].
func prfVerifyData(masterSecret, handshakeHash []byte, label string, h crypto.Hash) ([]byte, error) {
	seed := append([]byte(label), handshakeHash...)
	return prfPHash(masterSecret, seed, 12, h)
}

func prfVerifyDataClient(masterSecret, transcriptHash []byte, h crypto.Hash) ([]byte, error) {
	return prfVerifyData(masterSecret, transcriptHash, "client finished", h)
}

func prfVerifyDataServer(masterSecret, transcriptHash []byte, h crypto.Hash) ([]byte, error) {
	return prfVerifyData(masterSecret, transcriptHash, "server finished", h)
}

// exportKeyingMaterial implements RFC 5705: PRF over the master secret
// with the export label and optional context appended to the seed.
func exportKeyingMaterial(masterSecret, clientRandom, serverRandom []byte, label string, context []byte, length int, h crypto.Hash) ([]byte, error) {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	if context != nil {
		ctxLen := []byte{byte(len(context) >> 8), byte(len(context))}
		seed = append(seed, ctxLen...)
		seed = append(seed, context...)
	}
	return prfPHash(masterSecret, append([]byte(label), seed...), length, h)
}
