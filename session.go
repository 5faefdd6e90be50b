package dtls

import "time"

// Session is the resumable state a completed handshake produces (spec
// §3 Session data model): enough to skip the full key-exchange on a
// later connection to the same peer.
type Session struct {
	ID           []byte
	MasterSecret []byte
	CipherSuite  CipherSuiteID
	ServerName   string
	CreatedAt    time.Time

	// ClientRandom/ServerRandom are retained only in memory for the life
	// of this Conn, to support ExportKeyingMaterial (RFC 5705); they are
	// not part of the resumable SessionTicket.
	ClientRandom []byte
	ServerRandom []byte
}

func (s *Session) ticket() *SessionTicket {
	return &SessionTicket{
		ID:           s.ID,
		MasterSecret: s.MasterSecret,
		CipherSuite:  s.CipherSuite,
		ServerName:   s.ServerName,
	}
}

// inMemorySessionCache is a simple map-backed SessionCache. Nothing in
// this package installs it: when Config.SessionCache is nil, no session
// is stored or looked up and every handshake is a full one.
type inMemorySessionCache struct {
	entries map[string]*SessionTicket
}

func newInMemorySessionCache() *inMemorySessionCache {
	return &inMemorySessionCache{entries: make(map[string]*SessionTicket)}
}

func (c *inMemorySessionCache) Get(sessionID []byte) (*SessionTicket, bool) {
	t, ok := c.entries[string(sessionID)]
	return t, ok
}

func (c *inMemorySessionCache) Put(sessionID []byte, ticket *SessionTicket) {
	c.entries[string(sessionID)] = ticket
}
