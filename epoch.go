package dtls

import (
	"sync"

	"github.com/pion/transport/v3/replaydetector"
)

// replayWindowSize is the width of the anti-replay sliding window
// maintained per epoch (spec §3.2).
const replayWindowSize = 64

// epochState holds one side's per-epoch cryptographic and sequencing
// state: the negotiated cipher suite instance, the write sequence counter,
// and a replay window for the read direction (spec §3.2).
type epochState struct {
	mu sync.Mutex

	epoch uint16
	suite cipherSuite

	nextSequenceNumber uint64
	replay             replaydetector.ReplayDetector
}

func newEpochState(epoch uint16, suite cipherSuite) *epochState {
	return &epochState{
		epoch:  epoch,
		suite:  suite,
		replay: replaydetector.New(replayWindowSize, maxSequenceNumber),
	}
}

// nextWriteSequenceNumber allocates the next outbound sequence number for
// this epoch and reports overflow (spec §3.2 edge case: epoch exhaustion).
func (e *epochState) nextWriteSequenceNumber() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nextSequenceNumber > maxSequenceNumber {
		return 0, errSequenceNumberOverflow
	}
	seq := e.nextSequenceNumber
	e.nextSequenceNumber++
	return seq, nil
}

// accept runs the replay check for an inbound record's sequence number,
// returning a function to confirm the record as invalid or authentic
// (pion/transport/replaydetector's valid-until-confirmed pattern).
func (e *epochState) accept(seq uint64) (func() bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	markFn, ok := e.replay.Check(seq)
	return markFn, ok
}
