package dtls

import "sort"

// fragmentBufferMaxCount bounds how many distinct in-flight messages the
// Reassembler will track per flight, independent of the byte cap enforced
// by Config.MaxDeferredProcessedIncomingRecordsSize (spec §4.3).
const fragmentBufferMaxCount = 64

// fragment is one received handshake fragment, keyed by its message_seq
// and byte range within that message.
type fragment struct {
	msgSeq          uint16
	msgType         HandshakeType
	msgLength       uint32
	fragmentOffset  uint32
	fragmentLength  uint32
	data            []byte
}

// pendingMessage accumulates fragments for one message_seq until its
// total declared length is fully covered.
type pendingMessage struct {
	msgType   HandshakeType
	length    uint32
	fragments []fragment
	size      int // total buffered bytes, for the deferred-byte cap
}

// fragmentBuffer reassembles handshake fragments delivered out of order
// or split across multiple records (spec §4.3). push accepts or rejects
// a raw fragment; pop returns the next fully-reassembled message in
// strict message_seq order once available.
type fragmentBuffer struct {
	messages     map[uint16]*pendingMessage
	nextPopSeq   uint16
	bufferedSize int
	maxSize      int
}

func newFragmentBuffer(maxSize int) *fragmentBuffer {
	return &fragmentBuffer{
		messages: make(map[uint16]*pendingMessage),
		maxSize:  maxSize,
	}
}

// push inserts one fragment. It returns errFragmentBufferOverflow if
// admitting it would exceed the configured deferred-byte budget (the
// drop-newest policy from spec §4.3's resource_exhausted edge case), and
// errOverlappingFragmentConflict if it overlaps a previously buffered
// fragment with different bytes.
func (b *fragmentBuffer) push(h *HandshakeHeader, data []byte) error {
	pm, ok := b.messages[h.MessageSequence]
	if !ok {
		if len(b.messages) >= fragmentBufferMaxCount {
			return errFragmentBufferOverflow
		}
		pm = &pendingMessage{msgType: h.Type, length: h.Length}
		b.messages[h.MessageSequence] = pm
	}
	if pm.msgType != h.Type || pm.length != h.Length {
		return errDecodeError
	}

	uncovered := scanUncovered(pm.fragments, h.FragmentOffset, h.FragmentOffset+h.FragmentLength)
	if len(uncovered) == 0 {
		// Fully a retransmit of bytes we already have; fine, drop silently.
		return nil
	}

	if b.bufferedSize+len(data) > b.maxSize {
		return errFragmentBufferOverflow
	}

	newFrag := fragment{
		msgSeq:         h.MessageSequence,
		msgType:        h.Type,
		msgLength:      h.Length,
		fragmentOffset: h.FragmentOffset,
		fragmentLength: h.FragmentLength,
		data:           append([]byte{}, data...),
	}
	merged, err := insertMany(pm.fragments, newFrag)
	if err != nil {
		return err
	}
	pm.fragments = merged
	pm.size += len(data)
	b.bufferedSize += len(data)
	return nil
}

// pop reassembles and removes the next message in sequence order, if
// complete. ok is false when the next message_seq hasn't arrived yet, or
// is incomplete.
func (b *fragmentBuffer) pop() (h HandshakeHeader, payload []byte, ok bool) {
	pm, exists := b.messages[b.nextPopSeq]
	if !exists {
		return HandshakeHeader{}, nil, false
	}
	if !isFullyCovered(pm.fragments, pm.length) {
		return HandshakeHeader{}, nil, false
	}

	out := make([]byte, pm.length)
	for _, f := range pm.fragments {
		copy(out[f.fragmentOffset:], f.data)
	}

	h = HandshakeHeader{
		Type:            pm.msgType,
		Length:          pm.length,
		MessageSequence: b.nextPopSeq,
	}

	delete(b.messages, b.nextPopSeq)
	b.bufferedSize -= pm.size
	b.nextPopSeq++
	return h, out, true
}

// scanUncovered returns the sub-ranges of [start, end) not yet covered by
// any fragment in existing, so a caller can decide whether a new fragment
// adds anything (spec §4.3: overlapping fragments are deduplicated, not
// rejected, unless they disagree on content).
func scanUncovered(existing []fragment, start, end uint32) [][2]uint32 {
	if start >= end {
		return nil
	}
	covered := make([][2]uint32, 0, len(existing))
	for _, f := range existing {
		covered = append(covered, [2]uint32{f.fragmentOffset, f.fragmentOffset + f.fragmentLength})
	}
	sort.Slice(covered, func(i, j int) bool { return covered[i][0] < covered[j][0] })

	var uncovered [][2]uint32
	cur := start
	for _, c := range covered {
		if c[1] <= cur {
			continue
		}
		if c[0] > end {
			break
		}
		if c[0] > cur {
			uncovered = append(uncovered, [2]uint32{cur, min32(c[0], end)})
		}
		if c[1] > cur {
			cur = c[1]
		}
		if cur >= end {
			break
		}
	}
	if cur < end {
		uncovered = append(uncovered, [2]uint32{cur, end})
	}
	return uncovered
}

// insertMany adds newFrag to the fragment list existing, kept sorted by
// offset, returning an error if it overlaps a prior fragment with
// conflicting bytes at the shared offsets. Overlapping fragments whose
// shared bytes agree are both kept.
func insertMany(existing []fragment, newFrag fragment) ([]fragment, error) {
	for _, f := range existing {
		if overlaps(f, newFrag) && conflicts(f, newFrag) {
			return nil, errOverlappingFragmentConflict
		}
	}
	out := append([]fragment{}, existing...)
	out = append(out, newFrag)
	sort.Slice(out, func(i, j int) bool { return out[i].fragmentOffset < out[j].fragmentOffset })
	return out, nil
}

func overlaps(a, b fragment) bool {
	aEnd := a.fragmentOffset + a.fragmentLength
	bEnd := b.fragmentOffset + b.fragmentLength
	return a.fragmentOffset < bEnd && b.fragmentOffset < aEnd
}

func conflicts(a, b fragment) bool {
	loStart := max32(a.fragmentOffset, b.fragmentOffset)
	hiEnd := min32(a.fragmentOffset+a.fragmentLength, b.fragmentOffset+b.fragmentLength)
	for off := loStart; off < hiEnd; off++ {
		av := a.data[off-a.fragmentOffset]
		bv := b.data[off-b.fragmentOffset]
		if av != bv {
			return true
		}
	}
	return false
}

func isFullyCovered(fragments []fragment, total uint32) bool {
	uncovered := scanUncovered(fragments, 0, total)
	return len(uncovered) == 0
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
