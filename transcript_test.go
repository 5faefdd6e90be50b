package dtls

import (
	"crypto"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandshakeTranscriptSumMatchesIncrementalHash(t *testing.T) {
	tr := newHandshakeTranscript(crypto.SHA256)

	tr.append([]byte("client-hello"))
	tr.append([]byte("server-hello"))

	want := sha256.Sum256([]byte("client-helloserver-hello"))
	assert.Equal(t, want[:], tr.sum())
}

func TestHandshakeTranscriptMarkCapturesPointInTime(t *testing.T) {
	tr := newHandshakeTranscript(crypto.SHA256)

	tr.append([]byte("a"))
	tr.mark(checkpointBeforePeerFinished)
	tr.append([]byte("b"))
	tr.mark(checkpointAfterPeerFinished)

	before := tr.at(checkpointBeforePeerFinished)
	after := tr.at(checkpointAfterPeerFinished)

	wantBefore := sha256.Sum256([]byte("a"))
	wantAfter := sha256.Sum256([]byte("ab"))

	assert.Equal(t, wantBefore[:], before)
	assert.Equal(t, wantAfter[:], after)
	assert.NotEqual(t, before, after)
}

func TestHandshakeTranscriptSumDoesNotMutateRunningHash(t *testing.T) {
	tr := newHandshakeTranscript(crypto.SHA256)
	tr.append([]byte("x"))

	first := tr.sum()
	second := tr.sum()
	assert.Equal(t, first, second)

	tr.append([]byte("y"))
	third := tr.sum()
	assert.NotEqual(t, first, third)
}

func TestHandshakeTranscriptUnmarkedCheckpointIsNil(t *testing.T) {
	tr := newHandshakeTranscript(crypto.SHA256)
	assert.Nil(t, tr.at(checkpointAfterPeerFinished))
}
