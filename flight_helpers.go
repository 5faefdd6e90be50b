package dtls

// newHandshakeRecord wraps a handshakeMessagePayload as an unencrypted
// (epoch 0) Handshake record, advancing fs's local message_seq and
// feeding the transcript. It always produces one record holding the
// whole message; MTU fragmentation happens one layer up, in
// assembleFlight (flight_assembler.go), once the flight is handed to
// writePackets.
func newHandshakeRecord(fs *flightState, payload handshakeMessagePayload) (*RecordLayer, error) {
	body, err := payload.Marshal()
	if err != nil {
		return nil, err
	}
	header := HandshakeHeader{
		Type:            payload.handshakeType(),
		Length:          uint32(len(body)),
		MessageSequence: fs.localSequence,
		FragmentOffset:  0,
		FragmentLength:  uint32(len(body)),
	}
	fs.localSequence++

	msg := &handshakeMessage{header: header, raw: body, payload: payload}
	raw, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	if fs.transcript != nil {
		fs.transcript.append(raw)
	}

	return &RecordLayer{
		Header: RecordLayerHeader{
			ContentType:     ContentTypeHandshake,
			ProtocolVersion: ProtocolVersion1_2,
		},
		Content: msg,
	}, nil
}

func newAlertRecord(level AlertLevel, desc AlertDescription) *RecordLayer {
	return &RecordLayer{
		Header: RecordLayerHeader{
			ContentType:     ContentTypeAlert,
			ProtocolVersion: ProtocolVersion1_2,
		},
		Content: &Alert{Level: level, Description: desc},
	}
}

func newChangeCipherSpecRecord() *RecordLayer {
	return &RecordLayer{
		Header: RecordLayerHeader{
			ContentType:     ContentTypeChangeCipherSpec,
			ProtocolVersion: ProtocolVersion1_2,
		},
		Content: &changeCipherSpec{},
	}
}

// recordHandshakeIn feeds an inbound handshake message's raw bytes into
// the transcript and advances fs's expected remote message_seq. Callers
// reconstruct raw from the reassembled (header, body) pair.
func recordHandshakeIn(fs *flightState, header HandshakeHeader, body []byte) {
	msg := &handshakeMessage{header: header, raw: body}
	raw, err := msg.Marshal()
	if err != nil {
		return
	}
	if fs.transcript != nil {
		fs.transcript.append(raw)
	}
	fs.remoteSequence = header.MessageSequence + 1
}
