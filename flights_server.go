package dtls

import (
	"crypto"
	"crypto/rand"
)

// serverFlight0Generate has nothing to send; the server only reacts once
// a ClientHello arrives (spec §4.4a).
func serverFlight0Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	return nil, nil
}

// serverFlight0Parse consumes the client's first ClientHello. If it
// carries no cookie, the server always replies with HelloVerifyRequest
// (spec §4.2.1 of RFC 6347: unconditional on this server, simplifying the
// "when to skip the round trip" policy question some deployments allow).
func serverFlight0Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	header, body, ok := nextHandshakeMessage(f)
	if !ok {
		return Flight0, nil
	}
	if header.Type != HandshakeTypeClientHello {
		return 0, errUnexpectedMessage
	}
	ch := &messageClientHello{}
	if err := ch.Unmarshal(body); err != nil {
		return 0, err
	}

	if len(ch.cookie) == 0 {
		stashClientHello(fs, ch)
		return Flight1, nil
	}
	// A cookie on the very first message this FSM sees only happens if the
	// server lost its state (e.g. restart) mid-handshake and the client is
	// retransmitting flight3; verify it exactly as flight1Parse would.
	clientRandomRaw, _ := ch.random.Marshal()
	if !f.cfg.cookieGen.verify(f.cfg.remoteAddr, clientRandomRaw, ch.sessionID, ch.cookie) {
		return 0, errDecodeError
	}
	recordHandshakeIn(fs, header, body)
	stashClientHello(fs, ch)
	return routeAfterCookie(f, fs, ch)
}

// serverFlight1Generate sends the HelloVerifyRequest (spec §4.2.1).
func serverFlight1Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	clientRandomRaw, _ := fs.clientRandom.Marshal()
	cookie := f.cfg.cookieGen.generate(f.cfg.remoteAddr, clientRandomRaw, fs.clientSessionID)
	fs.serverIssuedCookie = cookie

	rec, err := newHandshakeRecord(fs, &messageHelloVerifyRequest{version: ProtocolVersion1_2, cookie: cookie})
	if err != nil {
		return nil, err
	}
	// The first ClientHello/HelloVerifyRequest pair is excluded from the
	// transcript (RFC 6347 §4.2.1): newHandshakeRecord just hashed the
	// HelloVerifyRequest into fs.transcript, so replace it outright rather
	// than only clearing its checkpoints. The retried ClientHello starts
	// the real transcript fresh.
	fs.transcript = newHandshakeTranscript(crypto.SHA256)
	return []*RecordLayer{rec}, nil
}

// serverFlight1Parse consumes the cookied retry ClientHello.
func serverFlight1Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	header, body, ok := nextHandshakeMessage(f)
	if !ok {
		return Flight1, nil
	}
	if header.Type != HandshakeTypeClientHello {
		return 0, errUnexpectedMessage
	}
	ch := &messageClientHello{}
	if err := ch.Unmarshal(body); err != nil {
		return 0, err
	}

	clientRandomRaw, _ := ch.random.Marshal()
	if !f.cfg.cookieGen.verify(f.cfg.remoteAddr, clientRandomRaw, ch.sessionID, ch.cookie) {
		return 0, errDecodeError
	}

	recordHandshakeIn(fs, header, body)
	stashClientHello(fs, ch)
	return routeAfterCookie(f, fs, ch)
}

// stashClientHello records the fields the rest of the flight needs from
// the (possibly retried) ClientHello.
func stashClientHello(fs *flightState, ch *messageClientHello) {
	fs.clientRandom = ch.random
	fs.clientOfferedSuites = ch.cipherSuiteIDs
	fs.clientSessionID = ch.sessionID
	if ext, ok := findExtension(ch.extensions, ExtensionSupportedGroups); ok {
		if groups, err := parseSupportedGroupsExtension(ext.Body); err == nil {
			fs.clientOfferedGroups = groups
		}
	}
	if ext, ok := findExtension(ch.extensions, ExtensionServerName); ok {
		if name, err := parseServerNameExtension(ext.Body); err == nil {
			fs.clientServerName = name
		}
	}
	if _, ok := findExtension(ch.extensions, ExtensionExtendedMasterSecret); ok {
		fs.clientOfferedEMS = true
	}
	if ext, ok := findExtension(ch.extensions, ExtensionConnectionID); ok {
		if cid, err := parseConnectionIDExtension(ext.Body); err == nil {
			fs.remoteCID = cid
		}
	}
}

// routeAfterCookie decides between a full handshake (Flight4) and
// abbreviated resumption (Flight4b) once the cookie has checked out
// (spec §6: resumption requires a session cache hit on the offered id).
func routeAfterCookie(f *handshakeFSM, fs *flightState, ch *messageClientHello) (FlightVal, error) {
	if len(ch.sessionID) > 0 && f.cfg.sessionCache != nil {
		if ticket, ok := f.cfg.sessionCache.Get(ch.sessionID); ok {
			fs.resuming = true
			fs.session = ticket
			fs.sessionID = ch.sessionID
			fs.masterSecret = ticket.MasterSecret
			fs.cipherSuite = cipherSuiteForID(ticket.CipherSuite)
			return Flight4b, nil
		}
	}
	fs.resuming = false
	fs.sessionID = newSessionID()
	return Flight4, nil
}

// serverFlight4Generate builds ServerHello through ServerHelloDone for a
// full handshake (spec §4.4b/c/d/e).
func serverFlight4Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	cs, ok := negotiateCipherSuite(f.cfg.localCipherSuites, fs.clientOfferedSuites)
	if !ok {
		return nil, errCipherSuiteNoIntersection
	}
	fs.cipherSuite = cs

	if !cs.isPSK() {
		group, ok := negotiateNamedGroup(fs.clientOfferedGroups, f.cfg.supportedNamedGroups)
		if !ok {
			return nil, errNoSupportedNamedGroup
		}
		fs.namedGroup = group
	}

	if err := fs.serverRandom.populate(); err != nil {
		return nil, err
	}

	var recs []*RecordLayer
	var exts []extension
	if fs.clientOfferedEMS && f.cfg.extendedMasterSecret != ExtendedMasterSecretTypeDisable {
		exts = append(exts, extendedMasterSecretExtension())
		fs.usingEMS = true
	}
	if fs.remoteCID != nil && f.cfg.connectionIDGenerator != nil {
		fs.localCID = f.cfg.connectionIDGenerator()
		exts = append(exts, connectionIDExtension(fs.localCID))
	}
	sh := &messageServerHello{
		version:           ProtocolVersion1_2,
		random:            fs.serverRandom,
		sessionID:         fs.sessionID,
		cipherSuiteID:     cs.ID(),
		compressionMethod: 0,
		extensions:        exts,
	}
	shRec, err := newHandshakeRecord(fs, sh)
	if err != nil {
		return nil, err
	}
	recs = append(recs, shRec)

	if !cs.isPSK() {
		certRec, err := newHandshakeRecord(fs, &messageCertificate{certificate: f.cfg.certificate.certificate})
		if err != nil {
			return nil, err
		}
		recs = append(recs, certRec)

		keypair, err := generateKeypair(fs.namedGroup)
		if err != nil {
			return nil, err
		}
		fs.keypair = keypair

		sig, scheme, err := signTranscript(f.cfg.certificate.privateKey, fs.transcript.sum())
		if err != nil {
			return nil, err
		}
		ske := &messageServerKeyExchange{namedGroup: fs.namedGroup, publicKey: keypair.publicKey, signatureScheme: scheme, signature: sig, hasSignature: true}
		skeRec, err := newHandshakeRecord(fs, ske)
		if err != nil {
			return nil, err
		}
		recs = append(recs, skeRec)
	} else {
		ske := &messageServerKeyExchange{identityHint: f.cfg.localPSKIdentityHint}
		skeRec, err := newHandshakeRecord(fs, ske)
		if err != nil {
			return nil, err
		}
		recs = append(recs, skeRec)
	}

	if f.cfg.clientAuth != NoClientCert {
		crRec, err := newHandshakeRecord(fs, &messageCertificateRequest{certificateTypes: f.cfg.supportedCertificateTypes})
		if err != nil {
			return nil, err
		}
		recs = append(recs, crRec)
	}

	doneRec, err := newHandshakeRecord(fs, &messageServerHelloDone{})
	if err != nil {
		return nil, err
	}
	recs = append(recs, doneRec)
	return recs, nil
}

// serverFlight4bGenerate builds the abbreviated ServerHello + CCS +
// Finished for a resumed session (spec §6 abbreviated handshake).
func serverFlight4bGenerate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	if err := fs.serverRandom.populate(); err != nil {
		return nil, err
	}
	var exts []extension
	if fs.remoteCID != nil && f.cfg.connectionIDGenerator != nil {
		fs.localCID = f.cfg.connectionIDGenerator()
		exts = append(exts, connectionIDExtension(fs.localCID))
	}
	sh := &messageServerHello{
		version:           ProtocolVersion1_2,
		random:            fs.serverRandom,
		sessionID:         fs.sessionID,
		cipherSuiteID:     fs.cipherSuite.ID(),
		compressionMethod: 0,
		extensions:        exts,
	}
	shRec, err := newHandshakeRecord(fs, sh)
	if err != nil {
		return nil, err
	}

	clientRandomRaw, _ := fs.clientRandom.Marshal()
	serverRandomRaw, _ := fs.serverRandom.Marshal()
	if err := fs.cipherSuite.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, false); err != nil {
		return nil, err
	}

	fs.transcript.mark(checkpointBeforePeerFinished)

	verifyData, err := prfVerifyDataServer(fs.masterSecret, fs.transcript.sum(), fs.cipherSuite.hashFunc())
	if err != nil {
		return nil, err
	}
	finRec, err := newHandshakeRecord(fs, &messageFinished{verifyData: verifyData})
	if err != nil {
		return nil, err
	}
	finRec.Header.Epoch = 1

	f.conn.setLocalEpoch(1)
	f.conn.setCipherSuite(1, fs.cipherSuite)
	return []*RecordLayer{shRec, newChangeCipherSpecRecord(), finRec}, nil
}

// serverFlight4Parse consumes the client's flight5 (full: Certificate*,
// ClientKeyExchange, CertificateVerify*, CCS, Finished) or flight5b
// (abbreviated: CCS, Finished), verifying the client's Finished either
// way (spec §4.4e/f).
func serverFlight4Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	for {
		header, body, ok := nextHandshakeMessage(f)
		if !ok {
			break
		}

		switch header.Type {
		case HandshakeTypeCertificate:
			recordHandshakeIn(fs, header, body)
			cert := &messageCertificate{}
			if err := cert.Unmarshal(body); err != nil {
				return 0, err
			}
			fs.remoteCertificates = cert.certificate

		case HandshakeTypeClientKeyExchange:
			recordHandshakeIn(fs, header, body)
			if err := completeServerKeyExchange(f, fs, body); err != nil {
				return 0, err
			}

		case HandshakeTypeCertificateVerify:
			recordHandshakeIn(fs, header, body)
			// The message is only added to the transcript: its signature is
			// not checked against fs.remoteCertificates' public key, and
			// f.cfg.certificateVerifier is not called on the chain.

		case HandshakeTypeFinished:
			if !f.conn.ccsSeen() {
				// Certificate...Finished with no intervening ChangeCipherSpec:
				// verify_data alone is computable by anyone holding the master
				// secret, so the CCS is the actual proof the client is at the
				// new epoch (spec §4.4 adversary hardening, scenario S7).
				return 0, errUnexpectedMessage
			}
			fs.transcript.mark(checkpointBeforePeerFinished)
			checkpoint := fs.transcript.at(checkpointBeforePeerFinished)
			recordHandshakeIn(fs, header, body)
			fin := &messageFinished{}
			if err := fin.Unmarshal(body); err != nil {
				return 0, err
			}
			expected, err := prfVerifyDataClient(fs.masterSecret, checkpoint, fs.cipherSuite.hashFunc())
			if err != nil {
				return 0, err
			}
			if string(expected) != string(fin.verifyData) {
				return 0, errVerifyDataMismatch
			}
			fs.transcript.mark(checkpointAfterPeerFinished)
			return Flight6, nil
		}
	}
	return f.currentFlight, nil
}

// completeServerKeyExchange derives the master secret once the client's
// ClientKeyExchange arrives (spec §4.4d/e).
func completeServerKeyExchange(f *handshakeFSM, fs *flightState, body []byte) error {
	cke := &messageClientKeyExchange{}
	if fs.cipherSuite.isPSK() {
		// The PSK form is a uint16-length-prefixed identity, which
		// Unmarshal (the ECDHE form) does not decode.
		if len(body) >= 2 {
			n := int(body[0])<<8 | int(body[1])
			if len(body) < 2+n {
				return errBufferTooSmall
			}
			cke.identityHint = append([]byte{}, body[2:2+n]...)
		}
	} else if err := cke.Unmarshal(body); err != nil {
		return err
	}

	var preMasterSecret []byte
	var err error
	if fs.cipherSuite.isPSK() {
		psk, perr := f.cfg.localPSKCallback(nil, cke.identityHint)
		if perr != nil {
			return errIdentityNoPSK
		}
		preMasterSecret = prfPSKPreMasterSecret(psk)
	} else {
		preMasterSecret, err = fs.keypair.sharedSecret(cke.publicKey)
		if err != nil {
			return err
		}
	}

	clientRandomRaw, _ := fs.clientRandom.Marshal()
	serverRandomRaw, _ := fs.serverRandom.Marshal()
	if fs.usingEMS {
		fs.masterSecret, err = prfExtendedMasterSecret(preMasterSecret, fs.transcript.sum(), fs.cipherSuite.hashFunc())
	} else {
		fs.masterSecret, err = prfMasterSecret(preMasterSecret, clientRandomRaw, serverRandomRaw, fs.cipherSuite.hashFunc())
	}
	if err != nil {
		return err
	}
	if err := fs.cipherSuite.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, false); err != nil {
		return err
	}
	// The client's Finished arrives at epoch 1 before this server sends its
	// own Flight6; the decrypt side of the suite must be live already.
	f.conn.setCipherSuite(1, fs.cipherSuite)
	return nil
}

// serverFlight6Generate finishes a full handshake by sending CCS +
// Finished. When the session arrived here via abbreviated resumption
// (Flight4b already sent CCS+Finished), this step is a no-op
// acknowledgment that the client's Finished checked out.
func serverFlight6Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	if fs.resuming {
		return nil, nil
	}

	clientRandomRaw, _ := fs.clientRandom.Marshal()
	serverRandomRaw, _ := fs.serverRandom.Marshal()
	if err := fs.cipherSuite.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, false); err != nil {
		return nil, err
	}
	f.conn.setLocalEpoch(1)

	verifyData, err := prfVerifyDataServer(fs.masterSecret, fs.transcript.sum(), fs.cipherSuite.hashFunc())
	if err != nil {
		return nil, err
	}
	finRec, err := newHandshakeRecord(fs, &messageFinished{verifyData: verifyData})
	if err != nil {
		return nil, err
	}
	finRec.Header.Epoch = 1
	return []*RecordLayer{newChangeCipherSpecRecord(), finRec}, nil
}

func newSessionID() []byte {
	id := make([]byte, 32)
	_, _ = rand.Read(id)
	return id
}
