package dtls

import (
	"context"
	"crypto"
	"net"
	"time"
)

// Server runs the DTLS server handshake over an already-connected
// net.Conn — one peer, no multiplexing (spec §4.5/§6). Most servers
// instead use Listen, which multiplexes many peers over one UDP socket
// through a Connector; Server is for callers that already own a
// per-peer net.Conn (e.g. a connected UDP socket from their own accept
// loop, or DTLS-over-a-reliable-testing-transport).
func Server(rawConn net.Conn, config *Config) (*Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.retransmissionTimeout()*time.Duration(2<<uint(config.maxRetransmissions())))
	defer cancel()
	return ServerWithContext(ctx, rawConn, config)
}

// ServerWithContext is Server with an explicit handshake context.
func ServerWithContext(ctx context.Context, rawConn net.Conn, config *Config) (*Conn, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	cookieGen, err := newCookieGenerator(config.cookieTTL())
	if err != nil {
		return nil, err
	}
	cfg, err := newHandshakeConfig(config, false, cookieGen, rawConn.RemoteAddr())
	if err != nil {
		return nil, err
	}

	conn := newConn(rawConn, config, false)
	go conn.readLoop()

	fsm := newHandshakeFSM(cfg, conn, false, Flight0)
	fs := &flightState{transcript: newHandshakeTranscript(crypto.SHA256)}

	if err := fsm.Run(ctx, fs); err != nil {
		conn.teardown(err)
		return nil, err
	}

	clientRandom, _ := fs.clientRandom.Marshal()
	serverRandom, _ := fs.serverRandom.Marshal()
	conn.handshakeDone = true
	conn.localConnectionID = fs.localCID
	conn.remoteConnectionID = fs.remoteCID
	conn.session = &Session{
		ID:           fs.sessionID,
		MasterSecret: fs.masterSecret,
		CipherSuite:  fs.cipherSuite.ID(),
		ServerName:   fs.clientServerName,
		CreatedAt:    nowFunc(),
		ClientRandom: clientRandom,
		ServerRandom: serverRandom,
	}
	if config.SessionCache != nil && !fs.resuming {
		config.SessionCache.Put(fs.sessionID, conn.session.ticket())
	}

	return conn, nil
}

// Listener accepts multiplexed DTLS connections over a single UDP
// socket, wrapping a Connector (spec §4.6).
type Listener struct {
	connector *Connector
}

// Listen opens a UDP socket at laddr and returns a Listener that
// demultiplexes inbound peers, bounds concurrent handshakes, and rate
// limits cookie-less ClientHellos (spec §4.6, §5 concurrency model).
func Listen(network, laddr string, config *Config) (*Listener, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr(network, laddr)
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, err
	}
	connector, err := newConnector(pc, config)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	go connector.Run()
	return &Listener{connector: connector}, nil
}

// Accept blocks until a new peer completes its handshake.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) { return l.connector.Accept(ctx) }

// Close releases the underlying UDP socket.
func (l *Listener) Close() error { return l.connector.Close() }

// Addr returns the listener's local UDP address.
func (l *Listener) Addr() net.Addr { return l.connector.pc.LocalAddr() }
