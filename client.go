package dtls

import (
	"context"
	"crypto"
	"net"
	"time"
)

// Dial connects to a DTLS server over UDP and completes the client-side
// handshake before returning (spec §6 external interface, Client role).
func Dial(network, addr string, config *Config) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return nil, err
	}
	return Client(udpConn, config)
}

// DialWithContext is Dial with a context governing the handshake
// deadline, canceling the whole exchange (not just the initial dial) if
// it expires before Finished is verified.
func DialWithContext(ctx context.Context, network, addr string, config *Config) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return nil, err
	}
	return ClientWithContext(ctx, udpConn, config)
}

// Client runs the DTLS client handshake over an already-connected
// net.Conn (spec §4.5/§6). The handshake deadline defaults to
// Config.RetransmissionTimeout multiplied by 2^(MaxRetransmissions+1).
func Client(rawConn net.Conn, config *Config) (*Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.retransmissionTimeout()*time.Duration(2<<uint(config.maxRetransmissions())))
	defer cancel()
	return ClientWithContext(ctx, rawConn, config)
}

// ClientWithContext is Client with an explicit handshake context.
func ClientWithContext(ctx context.Context, rawConn net.Conn, config *Config) (*Conn, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	cfg, err := newHandshakeConfig(config, true, nil, nil)
	if err != nil {
		return nil, err
	}

	conn := newConn(rawConn, config, true)
	go conn.readLoop()

	fs := &flightState{transcript: newHandshakeTranscript(crypto.SHA256)}
	if config.SessionCache != nil {
		if ticket, ok := config.SessionCache.Get([]byte(config.ServerName)); ok {
			fs.sessionID = ticket.ID
			fs.masterSecret = ticket.MasterSecret
			fs.cipherSuite = cipherSuiteForID(ticket.CipherSuite)
		}
	}

	fsm := newHandshakeFSM(cfg, conn, true, Flight1)
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
		ServerName:   config.ServerName,
		CreatedAt:    nowFunc(),
		ClientRandom: clientRandom,
		ServerRandom: serverRandom,
	}
	if config.SessionCache != nil && !fs.resuming {
		config.SessionCache.Put([]byte(config.ServerName), conn.session.ticket())
	}

	return conn, nil
}
