package dtls

import (
	"context"
	"crypto"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// demuxedPacketConn adapts one remote address behind a shared
// net.PacketConn into a net.Conn, the same trick the teacher's
// internal/net/udp listener uses to hand each peer its own Conn while a
// single socket receives for all of them (spec §4.6 Connector).
type demuxedPacketConn struct {
	pc        net.PacketConn
	localAddr net.Addr

	addrMu     sync.RWMutex
	remoteAddr net.Addr

	readCh chan []byte
}

func newDemuxedPacketConn(pc net.PacketConn, remoteAddr net.Addr) *demuxedPacketConn {
	return &demuxedPacketConn{
		pc:         pc,
		remoteAddr: remoteAddr,
		localAddr:  pc.LocalAddr(),
		readCh:     make(chan []byte, 128),
	}
}

func (d *demuxedPacketConn) Read(b []byte) (int, error) {
	data, ok := <-d.readCh
	if !ok {
		return 0, net.ErrClosed
	}
	return copy(b, data), nil
}

func (d *demuxedPacketConn) Write(b []byte) (int, error) { return d.pc.WriteTo(b, d.RemoteAddr()) }
func (d *demuxedPacketConn) Close() error                { return nil } // socket is shared; Connector owns it
func (d *demuxedPacketConn) LocalAddr() net.Addr          { return d.localAddr }

func (d *demuxedPacketConn) RemoteAddr() net.Addr {
	d.addrMu.RLock()
	defer d.addrMu.RUnlock()
	return d.remoteAddr
}

// rebind retargets outgoing writes to a new source address observed on an
// inbound datagram routed to this conn by Connection ID (RFC 9146 §6 NAT
// rebind tolerance, spec §4.6).
func (d *demuxedPacketConn) rebind(newAddr net.Addr) {
	d.addrMu.Lock()
	d.remoteAddr = newAddr
	d.addrMu.Unlock()
}

func (d *demuxedPacketConn) SetDeadline(t time.Time) error      { return nil }
func (d *demuxedPacketConn) SetReadDeadline(t time.Time) error  { return nil }
func (d *demuxedPacketConn) SetWriteDeadline(t time.Time) error { return nil }

// Connector owns the UDP socket for a server, demultiplexes inbound
// datagrams by remote address (and Connection ID, for rebinds), bounds
// concurrent handshakes, and rate-limits first-contact datagrams (those
// from an address with no connection yet) through one limiter shared by
// all addresses (spec §4.6 Connector).
type Connector struct {
	pc     net.PacketConn
	config *Config
	store  *connectionStore
	cookie *cookieGenerator

	// cidLen is the fixed length of CIDs this Connector's configured
	// ConnectionIDGenerator produces, learned once at construction time so
	// Run can peek a datagram's CID without a full record decode. 0 means
	// CID support is disabled and dispatch is by address only.
	cidLen int

	handshakeSem *semaphore.Weighted
	helloLimiter *rate.Limiter

	acceptCh chan *Conn
	closeCh  chan struct{}

	mu    sync.Mutex
	conns map[string]*demuxedPacketConn
}

// newConnector grounds its worker-pool/rate-limit wiring on golang.org/x/sync
// and golang.org/x/time, both present in this corpus's dependency pack
// (quic-go's go.mod) though unused by the teacher itself.
func newConnector(pc net.PacketConn, config *Config) (*Connector, error) {
	cg, err := newCookieGenerator(config.cookieTTL())
	if err != nil {
		return nil, err
	}
	var cidLen int
	if config.ConnectionIDGenerator != nil {
		cidLen = len(config.ConnectionIDGenerator())
	}
	return &Connector{
		pc:           pc,
		config:       config,
		store:        newConnectionStore(config.maxConnections(), config.staleSessionTimeout()),
		cookie:       cg,
		cidLen:       cidLen,
		handshakeSem: semaphore.NewWeighted(int64(config.maxConnections())),
		helloLimiter: rate.NewLimiter(rate.Limit(100), 200),
		acceptCh:     make(chan *Conn, 16),
		closeCh:      make(chan struct{}),
		conns:        make(map[string]*demuxedPacketConn),
	}, nil
}

// Accept blocks until a new inbound connection completes its handshake,
// mirroring net.Listener (spec §4.6 external interface).
func (l *Connector) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-l.closeCh:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Connector) Close() error {
	close(l.closeCh)
	return l.pc.Close()
}

// Run is the Connector's single read loop: every datagram is routed to
// its *demuxedPacketConn, by Connection ID first (so a rebind to a new
// source address is still recognized as the same peer) and by remote
// address otherwise, creating a new one (and spawning a bounded handshake
// goroutine) only on genuine first contact (spec §4.6).
func (l *Connector) Run() {
	buf := make([]byte, 64*1024)

	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		payload := append([]byte{}, buf[:n]...)

		l.mu.Lock()
		dc := l.dispatchLocked(addr, payload)
		if dc == nil {
			if !l.helloLimiter.Allow() {
				l.mu.Unlock()
				continue
			}
			dc = newDemuxedPacketConn(l.pc, addr)
			l.conns[addr.String()] = dc
			l.mu.Unlock()

			if l.handshakeSem.TryAcquire(1) {
				go l.handleNewConn(dc)
			} else {
				continue
			}
		} else {
			l.mu.Unlock()
		}

		select {
		case dc.readCh <- payload:
		default:
		}
	}
}

// dispatchLocked resolves the demuxedPacketConn payload belongs to. l.mu
// must be held. A CID match that disagrees with the address map means the
// peer rebound (RFC 9146 §6); dispatchLocked updates both the Connector's
// own address map and the connectionStore to follow it.
func (l *Connector) dispatchLocked(addr net.Addr, payload []byte) *demuxedPacketConn {
	if cid, ok := peekConnectionID(payload, l.cidLen); ok {
		if conn, ok := l.store.getByCID(cid); ok {
			if dc, ok := conn.rawConn.(*demuxedPacketConn); ok {
				if old := dc.RemoteAddr().String(); old != addr.String() {
					delete(l.conns, old)
					dc.rebind(addr)
					l.conns[addr.String()] = dc
					l.store.rebind(cid, addr)
				}
				return dc
			}
		}
	}
	return l.conns[addr.String()]
}

// peekConnectionID reads the CID off a raw datagram's record header
// without decrypting or fully decoding it, so Run's dispatch can consult
// it before any demuxedPacketConn exists for this payload (spec §4.6;
// wire layout per RFC 9146 §4).
func peekConnectionID(payload []byte, cidLen int) ([]byte, bool) {
	if cidLen == 0 || len(payload) < 11+cidLen {
		return nil, false
	}
	if ContentType(payload[0]) != ContentTypeConnectionID {
		return nil, false
	}
	return payload[11 : 11+cidLen], true
}

func (l *Connector) handleNewConn(dc *demuxedPacketConn) {
	defer l.handshakeSem.Release(1)

	conn := newConn(dc, l.config, false)
	go conn.readLoop()

	cfg, err := serverHandshakeConfig(l.config, l.cookie, dc.RemoteAddr())
	if err != nil {
		conn.teardown(err)
		return
	}
	fsm := newHandshakeFSM(cfg, conn, false, Flight0)
	fs := &flightState{transcript: newHandshakeTranscript(crypto.SHA256)}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.retransmitInterval*time.Duration(cfg.maxRetransmissions+1)*8)
	defer cancel()

	if err := fsm.Run(ctx, fs); err != nil {
		conn.teardown(err)
		return
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
	if l.config.SessionCache != nil && !fs.resuming {
		l.config.SessionCache.Put(fs.sessionID, conn.session.ticket())
	}
	_ = l.store.put(dc.RemoteAddr(), conn.localConnectionID, conn)

	select {
	case l.acceptCh <- conn:
	case <-l.closeCh:
	}
}

// nowFunc is indirected so it could be replaced in tests; this package
// otherwise never calls time.Now() outside handshakeRandom/cookie TTL use.
var nowFunc = time.Now
