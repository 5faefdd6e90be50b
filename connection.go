package dtls

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Conn is one established or handshaking DTLS connection over a
// net.Conn/net.PacketConn-backed transport (spec §4.5 Connection).
type Conn struct {
	rawConn net.Conn
	config  *Config
	log     logging.LeveledLogger

	isClient bool

	localConnectionID  []byte
	remoteConnectionID []byte

	localEpoch  uint16
	remoteEpoch uint16
	epochs      map[uint16]*epochState
	epochsMu    sync.RWMutex

	fragments *fragmentBuffer

	recvHandshakeCh chan struct{}
	readDeadline    time.Time

	appData   chan []byte
	closeOnce sync.Once
	closeCh   chan struct{}
	closeErr  error

	handshakeDone bool
	session       *Session

	writeMu sync.Mutex

	ccsMu       sync.Mutex
	ccsSeenFlag bool
}

func newConn(rawConn net.Conn, config *Config, isClient bool) *Conn {
	return &Conn{
		rawConn:   rawConn,
		config:    config,
		log:       config.loggerFactory().NewLogger("dtls"),
		isClient:  isClient,
		epochs:    make(map[uint16]*epochState),
		fragments: newFragmentBuffer(config.maxDeferredSize()),

		recvHandshakeCh: make(chan struct{}, 1),
		appData:         make(chan []byte, 128),
		closeCh:         make(chan struct{}),
	}
}

// --- flightConn ---

func (c *Conn) notify(ctx context.Context, level AlertLevel, desc AlertDescription) error {
	rec := newAlertRecord(level, desc)
	return c.writePackets(ctx, []*RecordLayer{rec})
}

func (c *Conn) writePackets(ctx context.Context, pkts []*RecordLayer) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	pathMTU := c.config.pathMTU()
	pkts = assembleFlight(pkts, pathMTU)

	var datagram []byte
	for _, pkt := range pkts {
		epoch := pkt.Header.Epoch
		es := c.epochStateFor(epoch)

		seq, err := es.nextWriteSequenceNumber()
		if err != nil {
			return err
		}
		pkt.Header.SequenceNumber = seq
		if pkt.Header.ProtocolVersion.Major == 0 {
			pkt.Header.ProtocolVersion = ProtocolVersion1_2
		}
		if len(c.remoteConnectionID) > 0 && epoch > 0 {
			pkt.Header.ConnectionID = c.remoteConnectionID
		}

		raw, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if epoch > 0 && es.suite != nil && es.suite.isInitialized() {
			raw, err = es.suite.encrypt(&pkt.Header, raw)
			if err != nil {
				return err
			}
		}

		// Records are packed into one datagram up to the path-MTU budget
		// (spec §4.2): flush what's accumulated before it would grow past
		// that. A single record larger than the budget is still written,
		// as a datagram of its own.
		if len(datagram) > 0 && len(datagram)+len(raw) > pathMTU {
			if _, err := c.rawConn.Write(datagram); err != nil {
				return err
			}
			datagram = nil
		}
		datagram = append(datagram, raw...)
	}

	if len(datagram) == 0 {
		return nil
	}
	_, err := c.rawConn.Write(datagram)
	return err
}

func (c *Conn) recvHandshake() <-chan struct{} { return c.recvHandshakeCh }

func (c *Conn) setLocalEpoch(epoch uint16) {
	c.localEpoch = epoch
	c.epochStateFor(epoch)
}

func (c *Conn) setCipherSuite(epoch uint16, suite cipherSuite) {
	c.epochsMu.Lock()
	defer c.epochsMu.Unlock()
	es, ok := c.epochs[epoch]
	if !ok {
		es = newEpochState(epoch, suite)
		c.epochs[epoch] = es
		return
	}
	es.suite = suite
}

func (c *Conn) sessionKey() []byte { return c.localConnectionID }

func (c *Conn) closed() <-chan struct{} { return c.closeCh }

// ccsSeen reports whether a genuine epoch-bumping ChangeCipherSpec has
// been observed on this connection, the gate a Finished message must
// pass before its verify_data is even checked (spec §4.4 adversary
// hardening).
func (c *Conn) ccsSeen() bool {
	c.ccsMu.Lock()
	defer c.ccsMu.Unlock()
	return c.ccsSeenFlag
}

func (c *Conn) epochStateFor(epoch uint16) *epochState {
	c.epochsMu.Lock()
	defer c.epochsMu.Unlock()
	es, ok := c.epochs[epoch]
	if !ok {
		es = newEpochState(epoch, nil)
		c.epochs[epoch] = es
	}
	return es
}

func (c *Conn) nextHandshakeMessage() (HandshakeHeader, []byte, bool) {
	return c.fragments.pop()
}

// --- inbound processing ---

// readLoop pulls datagrams off rawConn, splits and decrypts records, and
// routes handshake fragments into the Reassembler or application data
// into the read queue (spec §4.1 Record Layer, §4.3 Reassembler).
func (c *Conn) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.rawConn.Read(buf)
		if err != nil {
			c.teardown(err)
			return
		}
		cidLen := len(c.localConnectionID)
		records, err := unpackDatagram(buf[:n], cidLen)
		if err != nil {
			continue
		}
		for _, raw := range records {
			c.handleRecord(raw, cidLen)
		}
	}
}

func (c *Conn) handleRecord(raw []byte, cidLen int) {
	var header RecordLayerHeader
	if err := header.Unmarshal(raw, cidLen); err != nil {
		return
	}

	es := c.epochStateFor(header.Epoch)
	plain := raw
	if header.Epoch > 0 {
		if es.suite == nil || !es.suite.isInitialized() {
			return
		}
		decrypted, err := es.suite.decrypt(raw, cidLen)
		if err != nil {
			return
		}
		plain = decrypted
	}

	markFn, ok := es.accept(header.SequenceNumber)
	if !ok {
		return
	}
	markFn()

	var rec RecordLayer
	if err := rec.Unmarshal(plain, cidLen); err != nil {
		return
	}

	switch content := rec.Content.(type) {
	case *handshakeMessage:
		if err := c.fragments.push(&content.header, content.raw); err == nil {
			select {
			case c.recvHandshakeCh <- struct{}{}:
			default:
			}
		}
	case *Alert:
		c.teardown(&alertError{content})
	case *applicationData:
		select {
		case c.appData <- content.data:
		case <-c.closeCh:
		}
	case *changeCipherSpec:
		// A ChangeCipherSpec is only a genuine epoch bump when it arrives
		// at the epoch it's bumping away from; a replayed/out-of-order one
		// at some other epoch doesn't count (spec §4.4 adversary hardening,
		// scenario S7: Finished must be preceded by a real CCS, not merely
		// computable from the master secret).
		if header.Epoch == c.remoteEpoch {
			c.remoteEpoch++
			c.ccsMu.Lock()
			c.ccsSeenFlag = true
			c.ccsMu.Unlock()
		}
	}
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closeCh)
		close(c.appData)
	})
}

// --- public API (spec §4.5 external interface) ---

// Read blocks until application data is available or the connection is
// closed.
func (c *Conn) Read(b []byte) (int, error) {
	select {
	case data, ok := <-c.appData:
		if !ok {
			return 0, ErrConnClosed
		}
		n := copy(b, data)
		return n, nil
	case <-c.closeCh:
		return 0, ErrConnClosed
	}
}

// Write sends application data under the current epoch.
func (c *Conn) Write(b []byte) (int, error) {
	rec := &RecordLayer{
		Header:  RecordLayerHeader{ContentType: ContentTypeApplicationData, Epoch: c.localEpoch, ProtocolVersion: ProtocolVersion1_2},
		Content: &applicationData{data: b},
	}
	if err := c.writePackets(context.Background(), []*RecordLayer{rec}); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close sends a close_notify alert and releases local resources.
func (c *Conn) Close() error {
	_ = c.notify(context.Background(), AlertLevelWarning, AlertCloseNotify)
	c.teardown(ErrConnClosed)
	return c.rawConn.Close()
}

func (c *Conn) LocalAddr() net.Addr  { return c.rawConn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.rawConn.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error      { return c.rawConn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.rawConn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.rawConn.SetWriteDeadline(t) }

// ConnectionState exposes the negotiated session parameters once the
// handshake has completed (spec §4.5).
type ConnectionState struct {
	CipherSuiteID CipherSuiteID
	SessionID     []byte
	ServerName    string
}

func (c *Conn) ConnectionState() ConnectionState {
	if c.session == nil {
		return ConnectionState{}
	}
	return ConnectionState{CipherSuiteID: c.session.CipherSuite, SessionID: c.session.ID, ServerName: c.session.ServerName}
}

// ExportKeyingMaterial implements RFC 5705 for out-of-band key derivation
// (spec §6 supplemented feature). A nil context is treated as "no
// context" and adds nothing to the seed; an empty non-nil slice adds a
// zero-length context block (a 0x0000 length field), so the two give
// different output.
func (c *Conn) ExportKeyingMaterial(label string, context []byte, length int) ([]byte, error) {
	if !c.handshakeDone || c.session == nil {
		return nil, errHandshakeInProgress
	}
	if label == "client finished" || label == "server finished" || label == "master secret" || label == "key expansion" {
		return nil, errReservedExportKeyingMaterial
	}
	suite := cipherSuiteForID(c.session.CipherSuite)
	if suite == nil {
		return nil, errCipherSuiteNotInit
	}
	return exportKeyingMaterial(c.session.MasterSecret, c.session.ClientRandom, c.session.ServerRandom, label, context, length, suite.hashFunc())
}
