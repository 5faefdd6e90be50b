package dtls

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"net"
	"sync"
	"time"
)

// cookieLength matches the teacher's stateless-cookie convention: long
// enough to resist brute force, short enough to fit comfortably in a
// HelloVerifyRequest (spec §4.2.1 of RFC 6347).
const cookieLength = 32

// cookieGenerator produces and verifies the stateless cookie a server
// sends in HelloVerifyRequest, keyed by a secret that rotates on a TTL
// (spec §6 CookieTTL; resolves the "when to require a fresh
// HelloVerifyRequest before accepting a resumption ClientHello" open
// question by scoping validity to that same TTL window).
type cookieGenerator struct {
	mu     sync.Mutex
	secret [32]byte
	ttl    time.Duration
	issued time.Time
}

func newCookieGenerator(ttl time.Duration) (*cookieGenerator, error) {
	g := &cookieGenerator{ttl: ttl}
	if err := g.rotate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *cookieGenerator) rotate() error {
	if _, err := rand.Read(g.secret[:]); err != nil {
		return err
	}
	g.issued = time.Now()
	return nil
}

func (g *cookieGenerator) maybeRotate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if time.Since(g.issued) > g.ttl {
		_ = g.rotate()
	}
}

// generate derives a cookie bound to the client's address and the
// ClientHello's random and session_id, so a cookie minted for one client
// cannot be replayed by another (RFC 6347 §4.2.1).
func (g *cookieGenerator) generate(addr net.Addr, clientRandom, sessionID []byte) []byte {
	g.maybeRotate()
	g.mu.Lock()
	defer g.mu.Unlock()

	mac := hmac.New(sha256.New, g.secret[:])
	mac.Write([]byte(addr.String()))
	mac.Write(clientRandom)
	mac.Write(sessionID)
	return mac.Sum(nil)[:cookieLength]
}

// verify reports whether cookie matches what generate would currently
// produce for this (addr, clientRandom, sessionID) triple. Cookies expire
// implicitly when the secret rotates, bounding their validity to roughly
// the configured TTL (spec §6 CookieTTL).
func (g *cookieGenerator) verify(addr net.Addr, clientRandom, sessionID, cookie []byte) bool {
	expected := g.generate(addr, clientRandom, sessionID)
	return hmac.Equal(expected, cookie)
}
