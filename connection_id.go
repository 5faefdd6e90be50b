package dtls

import "crypto/rand"

// RandomCIDGenerator returns a ConnectionIDGenerator producing random CIDs
// of the given size. A size of 0 advertises CID support without ever
// sending a non-empty one (spec §4.4g "supported-but-empty-id" mode).
func RandomCIDGenerator(size int) ConnectionIDGenerator {
	return func() []byte {
		if size == 0 {
			return []byte{}
		}
		cid := make([]byte, size)
		if _, err := rand.Read(cid); err != nil {
			panic(err) // crypto/rand failing is unrecoverable
		}
		return cid
	}
}

// FixedCIDGenerator returns a ConnectionIDGenerator that always returns
// the given CID, useful for tests that need deterministic routing.
func FixedCIDGenerator(cid []byte) ConnectionIDGenerator {
	return func() []byte { return append([]byte{}, cid...) }
}
