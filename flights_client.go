package dtls

import (
	"crypto"
	"crypto/rand"
)

// clientFlight1Generate builds a ClientHello (spec §4.4a). The same
// function serves Flight1 (no cookie yet) and Flight3 (cookie attached
// after a HelloVerifyRequest), since the message shape only differs by
// the cookie field.
func clientFlight1Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	if fs.clientRandom.randomBytes == [28]byte{} {
		if err := fs.clientRandom.populate(); err != nil {
			return nil, err
		}
	}

	suiteIDs := make([]CipherSuiteID, 0, len(f.cfg.localCipherSuites))
	for _, cs := range f.cfg.localCipherSuites {
		suiteIDs = append(suiteIDs, cs.ID())
	}

	var exts []extension
	if f.cfg.serverName != "" {
		exts = append(exts, serverNameExtension(f.cfg.serverName))
	}
	exts = append(exts, supportedGroupsExtension(f.cfg.supportedNamedGroups))
	if f.cfg.extendedMasterSecret != ExtendedMasterSecretTypeDisable {
		exts = append(exts, extendedMasterSecretExtension())
	}
	if f.cfg.connectionIDGenerator != nil {
		fs.localCID = f.cfg.connectionIDGenerator()
		exts = append(exts, connectionIDExtension(fs.localCID))
	}

	hello := &messageClientHello{
		version:            ProtocolVersion1_2,
		random:             fs.clientRandom,
		cookie:             fs.cookie,
		sessionID:          fs.sessionID,
		cipherSuiteIDs:     suiteIDs,
		compressionMethods: []byte{0},
		extensions:         exts,
	}

	rec, err := newHandshakeRecord(fs, hello)
	if err != nil {
		return nil, err
	}
	return []*RecordLayer{rec}, nil
}

// clientFlight1Parse consumes the server's response to the cookie-less
// ClientHello: either a HelloVerifyRequest (store the cookie, retry) or,
// if the server skipped the cookie round entirely, the same messages
// clientFlight3Parse handles.
func clientFlight1Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	header, body, ok := nextHandshakeMessage(f)
	if !ok {
		return Flight1, nil
	}
	if header.Type == HandshakeTypeHelloVerifyRequest {
		hvr := &messageHelloVerifyRequest{}
		if err := hvr.Unmarshal(body); err != nil {
			return 0, err
		}
		fs.cookie = hvr.cookie
		// RFC 6347 §4.2.1: the first ClientHello and HelloVerifyRequest are
		// excluded from the transcript used for Finished verify_data.
		fs.transcript = newHandshakeTranscript(crypto.SHA256)
		return Flight3, nil
	}
	return clientFlight3Parse(f, fs)
}

// clientFlight3Parse consumes ServerHello through ServerHelloDone for a
// full handshake, or ServerHello+ChangeCipherSpec+Finished for abbreviated
// resumption (spec §4.4b/c, §6 abbreviated handshake).
func clientFlight3Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	for {
		header, body, ok := nextHandshakeMessage(f)
		if !ok {
			break
		}
		if header.Type == HandshakeTypeFinished {
			fs.transcript.mark(checkpointBeforePeerFinished)
		}
		recordHandshakeIn(fs, header, body)

		switch header.Type {
		case HandshakeTypeServerHello:
			sh := &messageServerHello{}
			if err := sh.Unmarshal(body); err != nil {
				return 0, err
			}
			fs.serverRandom = sh.random
			cs := cipherSuiteForID(sh.cipherSuiteID)
			if cs == nil {
				return 0, errCipherSuiteNoIntersection
			}
			fs.cipherSuite = cs
			if len(fs.sessionID) > 0 && string(sh.sessionID) == string(fs.sessionID) {
				fs.resuming = true
				// The server's Finished follows at epoch 1 in this flight, so
				// the epoch-1 read keys must be in place before it arrives.
				clientRandomRaw, _ := fs.clientRandom.Marshal()
				serverRandomRaw, _ := fs.serverRandom.Marshal()
				if err := cs.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, true); err != nil {
					return 0, err
				}
				f.conn.setCipherSuite(1, cs)
			}
			fs.sessionID = sh.sessionID
			if _, ok := findExtension(sh.extensions, ExtensionExtendedMasterSecret); ok {
				fs.usingEMS = true
			}
			if fs.localCID != nil {
				if ext, ok := findExtension(sh.extensions, ExtensionConnectionID); ok {
					if cid, err := parseConnectionIDExtension(ext.Body); err == nil {
						fs.remoteCID = cid
					}
				}
			}

		case HandshakeTypeCertificate:
			cert := &messageCertificate{}
			if err := cert.Unmarshal(body); err != nil {
				return 0, err
			}
			fs.remoteCertificates = cert.certificate

		case HandshakeTypeServerKeyExchange:
			ske, err := parseServerKeyExchange(body, fs.cipherSuite.isPSK(), !fs.cipherSuite.isPSK())
			if err != nil {
				return 0, err
			}
			if len(ske.publicKey) > 0 {
				fs.namedGroup = ske.namedGroup
				fs.peerPublicKey = ske.publicKey
			}

		case HandshakeTypeCertificateRequest:
			// The request is not recorded: certificateRequested checks
			// fs.certType, which stays at its zero value (X.509), so
			// clientFlight5Generate sends the configured certificate whether
			// or not one was requested.

		case HandshakeTypeServerHelloDone:
			return Flight5, nil

		case HandshakeTypeFinished:
			if !f.conn.ccsSeen() {
				return 0, errUnexpectedMessage
			}
			fin := &messageFinished{}
			if err := fin.Unmarshal(body); err != nil {
				return 0, err
			}
			expected, err := prfVerifyDataServer(fs.masterSecret, fs.transcript.at(checkpointBeforePeerFinished), fs.cipherSuite.hashFunc())
			if err != nil {
				return 0, err
			}
			if string(expected) != string(fin.verifyData) {
				return 0, errVerifyDataMismatch
			}
			return Flight5b, nil
		}
	}
	return f.currentFlight, nil
}

// clientFlight5Generate completes the full handshake: optional client
// Certificate, ClientKeyExchange, optional CertificateVerify, then
// ChangeCipherSpec + Finished under the new epoch (spec §4.4c/d/e).
func clientFlight5Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	var recs []*RecordLayer

	keypair, err := generateKeypair(fs.namedGroup)
	if err != nil {
		return nil, err
	}
	fs.keypair = keypair

	if f.cfg.certificate != nil && certificateRequested(fs) {
		certRec, err := newHandshakeRecord(fs, &messageCertificate{certificate: f.cfg.certificate.certificate})
		if err != nil {
			return nil, err
		}
		recs = append(recs, certRec)
	}

	cke := &messageClientKeyExchange{}
	if fs.cipherSuite.isPSK() {
		cke.identityHint = f.cfg.localPSKIdentityHint
	} else {
		cke.publicKey = keypair.publicKey
	}
	ckeRec, err := newHandshakeRecord(fs, cke)
	if err != nil {
		return nil, err
	}
	recs = append(recs, ckeRec)
	// RFC 7627 session_hash: the transcript up to and including
	// ClientKeyExchange, before any CertificateVerify is added.
	sessionHash := fs.transcript.sum()

	var preMasterSecret []byte
	if fs.cipherSuite.isPSK() {
		psk, err := f.cfg.localPSKCallback([]string{f.cfg.serverName}, f.cfg.localPSKIdentityHint)
		if err != nil {
			return nil, errIdentityNoPSK
		}
		preMasterSecret = prfPSKPreMasterSecret(psk)
	} else {
		preMasterSecret, err = keypair.sharedSecret(fs.peerPublicKey)
		if err != nil {
			return nil, err
		}
	}

	if f.cfg.certificate != nil && certificateRequested(fs) {
		sig, scheme, err := signTranscript(f.cfg.certificate.privateKey, fs.transcript.sum())
		if err != nil {
			return nil, err
		}
		cvRec, err := newHandshakeRecord(fs, &messageCertificateVerify{signatureScheme: scheme, signature: sig})
		if err != nil {
			return nil, err
		}
		recs = append(recs, cvRec)
	}

	clientRandomRaw, _ := fs.clientRandom.Marshal()
	serverRandomRaw, _ := fs.serverRandom.Marshal()
	if fs.usingEMS {
		fs.masterSecret, err = prfExtendedMasterSecret(preMasterSecret, sessionHash, fs.cipherSuite.hashFunc())
	} else {
		fs.masterSecret, err = prfMasterSecret(preMasterSecret, clientRandomRaw, serverRandomRaw, fs.cipherSuite.hashFunc())
	}
	if err != nil {
		return nil, err
	}
	if err := fs.cipherSuite.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, true); err != nil {
		return nil, err
	}

	recs = append(recs, newChangeCipherSpecRecord())
	f.conn.setLocalEpoch(1)
	f.conn.setCipherSuite(1, fs.cipherSuite)

	verifyData, err := prfVerifyDataClient(fs.masterSecret, fs.transcript.sum(), fs.cipherSuite.hashFunc())
	if err != nil {
		return nil, err
	}
	finRec, err := newHandshakeRecord(fs, &messageFinished{verifyData: verifyData})
	if err != nil {
		return nil, err
	}
	finRec.Header.Epoch = 1
	recs = append(recs, finRec)

	fs.transcript.mark(checkpointBeforePeerFinished)
	return recs, nil
}

// clientFlight5Parse waits for the server's ChangeCipherSpec + Finished
// (spec §4.4f terminal step of a full handshake).
func clientFlight5Parse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	for {
		header, body, ok := nextHandshakeMessage(f)
		if !ok {
			break
		}
		if header.Type == HandshakeTypeFinished {
			if !f.conn.ccsSeen() {
				return 0, errUnexpectedMessage
			}
			recordHandshakeIn(fs, header, body)
			fin := &messageFinished{}
			if err := fin.Unmarshal(body); err != nil {
				return 0, err
			}
			expected, err := prfVerifyDataServer(fs.masterSecret, fs.transcript.at(checkpointBeforePeerFinished), fs.cipherSuite.hashFunc())
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

// clientFlight5bGenerate sends the abbreviated-resumption CCS + Finished
// (spec §6 abbreviated handshake).
func clientFlight5bGenerate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	clientRandomRaw, _ := fs.clientRandom.Marshal()
	serverRandomRaw, _ := fs.serverRandom.Marshal()

	if err := fs.cipherSuite.init(fs.masterSecret, clientRandomRaw, serverRandomRaw, true); err != nil {
		return nil, err
	}

	var recs []*RecordLayer
	recs = append(recs, newChangeCipherSpecRecord())
	f.conn.setLocalEpoch(1)
	f.conn.setCipherSuite(1, fs.cipherSuite)

	verifyData, err := prfVerifyDataClient(fs.masterSecret, fs.transcript.sum(), fs.cipherSuite.hashFunc())
	if err != nil {
		return nil, err
	}
	finRec, err := newHandshakeRecord(fs, &messageFinished{verifyData: verifyData})
	if err != nil {
		return nil, err
	}
	finRec.Header.Epoch = 1
	recs = append(recs, finRec)
	return recs, nil
}

// clientFlight5bParse has nothing further to consume. Flight5b is a
// terminal send flight, so Run returns without calling it; a peer
// retransmit of Flight4b is answered by lingerForRetransmit resending
// Flight5b (spec §4.4f terminal retransmit rule).
func clientFlight5bParse(f *handshakeFSM, fs *flightState) (FlightVal, error) {
	return Flight5b, nil
}

// clientFlight6Generate is the no-op acknowledgment step after verifying
// the server's Finished in a full handshake; there is nothing left to
// send, but running it marks the flight complete.
func clientFlight6Generate(f *handshakeFSM, fs *flightState) ([]*RecordLayer, error) {
	return nil, nil
}

func certificateRequested(fs *flightState) bool {
	return fs.certType == ClientCertificateTypeX509 || fs.certType == ClientCertificateTypeRawPublicKey
}

// signTranscript signs the transcript hash with the client's private key
// for CertificateVerify (spec §4.4e).
func signTranscript(privateKey interface{}, transcriptHash []byte) (signature []byte, scheme uint16, err error) {
	signer, ok := privateKey.(crypto.Signer)
	if !ok {
		return nil, 0, errInvalidPrivateKey
	}
	sig, err := signer.Sign(rand.Reader, transcriptHash, crypto.SHA256)
	return sig, 0x0403, err // ecdsa_secp256r1_sha256
}

// nextHandshakeMessage reads the next reassembled message through the
// FSM's conn when that conn provides nextHandshakeMessage (as *Conn in
// connection.go does), not directly from fragmentBuffer, to keep this
// file transport agnostic. Any other flightConn yields no messages.
func nextHandshakeMessage(f *handshakeFSM) (HandshakeHeader, []byte, bool) {
	type messageSource interface {
		nextHandshakeMessage() (HandshakeHeader, []byte, bool)
	}
	if src, ok := f.conn.(messageSource); ok {
		return src.nextHandshakeMessage()
	}
	return HandshakeHeader{}, nil, false
}
