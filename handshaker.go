package dtls

import (
	"context"
	"net"
	"time"

	"github.com/pion/logging"
)

// handshakeState is a handshakeFSM's current stage (RFC 6347 §4.2.4).
type handshakeState uint8

const (
	handshakePreparing handshakeState = iota
	handshakeSending
	handshakeWaiting
	handshakeFinished
	handshakeErrored
)

func (s handshakeState) String() string {
	switch s {
	case handshakePreparing:
		return "Preparing"
	case handshakeSending:
		return "Sending"
	case handshakeWaiting:
		return "Waiting"
	case handshakeFinished:
		return "Finished"
	case handshakeErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// flightConn is the handshaker's view of the underlying connection: enough
// to send flights, wait for incoming handshake messages, and notify the
// caller of terminal errors. Implemented by *Conn (spec §4.5 Connection).
type flightConn interface {
	notify(ctx context.Context, level AlertLevel, desc AlertDescription) error
	writePackets(ctx context.Context, pkts []*RecordLayer) error
	recvHandshake() <-chan struct{}
	setLocalEpoch(epoch uint16)
	setCipherSuite(epoch uint16, suite cipherSuite)
	sessionKey() []byte
	closed() <-chan struct{}
	ccsSeen() bool
}

// handshakeConfig mirrors the subset of Config a handshakeFSM run needs,
// plus the callbacks/hooks specific to one run (spec §6).
type handshakeConfig struct {
	localPSKCallback        PSKCallback
	localPSKIdentityHint    []byte
	localCipherSuites       []cipherSuite
	localSignatureSchemes   []uint16
	extendedMasterSecret    ExtendedMasterSecretType
	localSRTPProtectionProfiles []uint16
	serverName              string
	supportedNamedGroups    []NamedGroup
	supportedCertificateTypes []ClientCertificateType
	clientAuth              ClientAuthType
	certificate             *x509CertPair
	insecureSkipVerify      bool
	certificateVerifier     CertificateVerifier
	rawKeyVerifier          RawKeyVerifier
	sessionCache            SessionCache
	connectionIDGenerator   ConnectionIDGenerator
	retransmitInterval      time.Duration
	maxRetransmissions      int
	onFlightState           func(FlightVal, handshakeState)
	log                     logging.LeveledLogger
	keyLogWriter            interface {
		Write(p []byte) (int, error)
	}

	cookieGen  *cookieGenerator
	remoteAddr net.Addr
}

// x509CertPair bundles a leaf certificate with its private key, the unit
// the handshaker needs for ServerKeyExchange/CertificateVerify signing.
type x509CertPair struct {
	certificate [][]byte // DER chain, leaf first
	privateKey  interface{}
}

// handshakeFSM drives one side of the RFC 6347 §4.2.4 flight state
// machine: prepare the next flight's messages, send them, wait for the
// peer's reply (retransmitting on timeout), then either advance or finish.
type handshakeFSM struct {
	currentFlight FlightVal
	state         handshakeState

	cfg  *handshakeConfig
	conn flightConn

	isClient bool

	retransmitCount int

	// pendingPackets holds the last flight generated, so the retransmit
	// path in handshakeWaiting/handshakeFinished can resend the same
	// records without calling the generator again; each send still gets
	// fresh record sequence numbers from writePackets (spec §4.4f).
	pendingPackets []*RecordLayer
}

func newHandshakeFSM(cfg *handshakeConfig, conn flightConn, isClient bool, start FlightVal) *handshakeFSM {
	return &handshakeFSM{
		currentFlight: start,
		state:         handshakePreparing,
		cfg:           cfg,
		conn:          conn,
		isClient:      isClient,
	}
}

// flightState is the shared mutable handshake context threaded through
// flight generate/parse functions (the cipher suite, keys, transcript,
// and negotiated parameters accumulated flight by flight).
type flightState struct {
	clientRandom handshakeRandom
	serverRandom handshakeRandom
	sessionID    []byte
	cookie       []byte

	cipherSuite cipherSuite
	namedGroup  NamedGroup
	certType    ClientCertificateType
	keypair     *namedCurveKeypair
	peerPublicKey []byte

	masterSecret []byte

	transcript *handshakeTranscript

	localSequence  uint16
	remoteSequence uint16

	resuming bool
	session  *SessionTicket

	remoteCertificates [][]byte
	peerVerified       bool

	// localCID is the Connection ID this side generated and offered to the
	// peer: once negotiated, the peer attaches it when writing to us.
	// remoteCID is the CID the peer offered: we attach it when writing to
	// them. The two are independent per RFC 9146 §1 ("each endpoint
	// independently decides whether to use a CID for its own traffic").
	localCID  []byte
	remoteCID []byte

	// Fields populated from the client's ClientHello (server role only).
	serverIssuedCookie  []byte
	clientOfferedSuites []CipherSuiteID
	clientSessionID     []byte
	clientOfferedGroups []NamedGroup
	clientServerName    string
	clientOfferedEMS    bool
	usingEMS            bool
}

// Run drives the FSM to completion or a fatal error (spec §4.4 overall
// handshake progression, §4.4f retransmission). It is the Handshaker
// component's single entry point; the generator/parser for each flight
// are resolved dynamically since client and server (and full vs.
// abbreviated) handshakes use a different function per FlightVal.
func (f *handshakeFSM) Run(ctx context.Context, fs *flightState) error {
	retransmitTimer := time.NewTimer(f.cfg.retransmitInterval)
	defer retransmitTimer.Stop()

	for {
		if f.cfg.onFlightState != nil {
			f.cfg.onFlightState(f.currentFlight, f.state)
		}

		switch f.state {
		case handshakePreparing:
			gen := getFlightGenerator(f.isClient, f.currentFlight)
			if gen == nil {
				return f.fail(ctx, errInvalidFlight)
			}
			pkts, err := gen(f, fs)
			if err != nil {
				return f.fail(ctx, err)
			}
			f.pendingPackets = pkts
			f.state = handshakeSending

		case handshakeSending:
			if len(f.pendingPackets) > 0 {
				if err := f.conn.writePackets(ctx, f.pendingPackets); err != nil {
					return f.fail(ctx, err)
				}
			}
			if f.currentFlight.isLastSendFlight() {
				f.state = handshakeFinished
				continue
			}
			retransmitTimer.Reset(f.cfg.retransmitInterval)
			f.state = handshakeWaiting

		case handshakeWaiting:
			select {
			case <-ctx.Done():
				return f.fail(ctx, ctx.Err())
			case <-f.conn.recvHandshake():
				parse := getFlightParser(f.isClient, f.currentFlight)
				if parse == nil {
					return f.fail(ctx, errInvalidFlight)
				}
				next, err := parse(f, fs)
				if err != nil {
					return f.fail(ctx, err)
				}
				if next == f.currentFlight {
					// Not enough to advance yet (e.g. partial flight); keep waiting.
					continue
				}
				f.currentFlight = next
				f.state = handshakePreparing
			case <-retransmitTimer.C:
				f.retransmitCount++
				if f.retransmitCount > f.cfg.maxRetransmissions {
					return f.fail(ctx, errRetransmissionExhausted)
				}
				if len(f.pendingPackets) > 0 {
					if err := f.conn.writePackets(ctx, f.pendingPackets); err != nil {
						return f.fail(ctx, err)
					}
				}
				retransmitTimer.Reset(f.cfg.retransmitInterval)
			}

		case handshakeFinished:
			// currentFlight is always terminal here (handshakeSending only
			// transitions into this state via isLastSendFlight). Run's
			// synchronous contract ends now, but the peer may not have seen
			// our last flight and will retransmit its own; keep a goroutine
			// listening on the connection so that retransmit still gets the
			// terminal-flight resend it's entitled to (RFC 6347 §4.2.4).
			go f.lingerForRetransmit()
			return nil

		case handshakeErrored:
			return errHandshakeInProgress
		}
	}
}

// lingerForRetransmit keeps resending the FSM's last flight for as long as
// the connection stays open, so a peer retransmit of the flight it last
// received (its copy of our Finished/ChangeCipherSpec having been lost)
// still gets the terminal-flight resend RFC 6347 §4.2.4 requires, even
// though Run has already returned to its caller (spec §4.4f).
func (f *handshakeFSM) lingerForRetransmit() {
	for {
		select {
		case <-f.conn.closed():
			return
		case <-f.conn.recvHandshake():
			if len(f.pendingPackets) == 0 {
				continue
			}
			if err := f.conn.writePackets(context.Background(), f.pendingPackets); err != nil {
				return
			}
		}
	}
}

func (f *handshakeFSM) fail(ctx context.Context, err error) error {
	f.state = handshakeErrored
	if desc, ok := alertForError(err); ok {
		_ = f.conn.notify(ctx, AlertLevelFatal, desc)
	}
	return &HandshakeError{Err: err, Reason: f.currentFlight.String()}
}

type flightGenerator func(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error)
type flightParser func(f *handshakeFSM, fs *flightState) (FlightVal, error)
