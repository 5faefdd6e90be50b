package dtls

// assembleFlight fragments any handshake record in recs whose body would
// push a single record past pathMTU into multiple records, each carrying
// a FragmentOffset/FragmentLength-tagged slice of the original message
// (spec §4.2 Flight Assembler). The budget allows for the record and
// handshake headers only, not for a Connection ID or AEAD expansion.
// Non-handshake records (ChangeCipherSpec, Alert, application data) pass
// through unchanged and are never split.
func assembleFlight(recs []*RecordLayer, pathMTU int) []*RecordLayer {
	budget := pathMTU - fixedRecordLayerHeaderSize - handshakeHeaderSize
	if budget <= 0 {
		budget = pathMTU
	}

	out := make([]*RecordLayer, 0, len(recs))
	for _, rec := range recs {
		msg, ok := rec.Content.(*handshakeMessage)
		if !ok || len(msg.raw) <= budget {
			out = append(out, rec)
			continue
		}
		for offset := 0; offset < len(msg.raw); offset += budget {
			end := offset + budget
			if end > len(msg.raw) {
				end = len(msg.raw)
			}
			fragHeader := msg.header
			fragHeader.FragmentOffset = uint32(offset)
			fragHeader.FragmentLength = uint32(end - offset)
			out = append(out, &RecordLayer{
				Header:  rec.Header,
				Content: &handshakeMessage{header: fragHeader, raw: msg.raw[offset:end]},
			})
		}
	}
	return out
}
