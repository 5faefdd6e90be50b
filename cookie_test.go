package dtls

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieGeneratorVerifiesOwnCookie(t *testing.T) {
	g, err := newCookieGenerator(time.Minute)
	assert.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4444}
	clientRandom := []byte("0123456789012345678901234567890123")
	sessionID := []byte{1, 2, 3}

	cookie := g.generate(addr, clientRandom, sessionID)
	assert.Len(t, cookie, cookieLength)
	assert.True(t, g.verify(addr, clientRandom, sessionID, cookie))
}

func TestCookieGeneratorRejectsWrongAddress(t *testing.T) {
	g, err := newCookieGenerator(time.Minute)
	assert.NoError(t, err)

	clientRandom := []byte("random-bytes")
	cookie := g.generate(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, clientRandom, nil)

	ok := g.verify(&net.UDPAddr{IP: net.ParseIP("127.0.0.2"), Port: 1}, clientRandom, nil, cookie)
	assert.False(t, ok)
}

func TestCookieGeneratorRotatesAfterTTL(t *testing.T) {
	g, err := newCookieGenerator(time.Millisecond)
	assert.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	clientRandom := []byte("random-bytes")
	cookie := g.generate(addr, clientRandom, nil)

	time.Sleep(5 * time.Millisecond)
	g.maybeRotate()

	assert.False(t, g.verify(addr, clientRandom, nil, cookie), "cookie minted under the old secret must not verify after rotation")
}
