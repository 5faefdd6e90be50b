package dtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentBufferReassemblesOutOfOrder(t *testing.T) {
	b := newFragmentBuffer(4096)

	full := []byte("ServerHelloPayloadBytes")
	h1 := &HandshakeHeader{Type: HandshakeTypeServerHello, Length: uint32(len(full)), MessageSequence: 0, FragmentOffset: 10, FragmentLength: uint32(len(full) - 10)}
	h0 := &HandshakeHeader{Type: HandshakeTypeServerHello, Length: uint32(len(full)), MessageSequence: 0, FragmentOffset: 0, FragmentLength: 10}

	assert.NoError(t, b.push(h1, full[10:]))
	_, _, ok := b.pop()
	assert.False(t, ok, "incomplete message must not pop")

	assert.NoError(t, b.push(h0, full[:10]))
	header, payload, ok := b.pop()
	assert.True(t, ok)
	assert.Equal(t, HandshakeTypeServerHello, header.Type)
	assert.Equal(t, full, payload)
}

func TestFragmentBufferPopsInMessageSequenceOrder(t *testing.T) {
	b := newFragmentBuffer(4096)

	second := []byte("second")
	first := []byte("first")

	assert.NoError(t, b.push(&HandshakeHeader{Type: HandshakeTypeCertificate, Length: uint32(len(second)), MessageSequence: 1, FragmentLength: uint32(len(second))}, second))
	_, _, ok := b.pop()
	assert.False(t, ok, "message 1 must wait behind message 0")

	assert.NoError(t, b.push(&HandshakeHeader{Type: HandshakeTypeServerHello, Length: uint32(len(first)), MessageSequence: 0, FragmentLength: uint32(len(first))}, first))

	header, payload, ok := b.pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), header.MessageSequence)
	assert.Equal(t, first, payload)

	header, payload, ok = b.pop()
	assert.True(t, ok)
	assert.Equal(t, uint16(1), header.MessageSequence)
	assert.Equal(t, second, payload)
}

func TestFragmentBufferRejectsConflictingOverlap(t *testing.T) {
	b := newFragmentBuffer(4096)

	h := &HandshakeHeader{Type: HandshakeTypeCertificate, Length: 10, MessageSequence: 0, FragmentOffset: 0, FragmentLength: 5}
	assert.NoError(t, b.push(h, []byte("AAAAA")))

	conflicting := &HandshakeHeader{Type: HandshakeTypeCertificate, Length: 10, MessageSequence: 0, FragmentOffset: 2, FragmentLength: 5}
	err := b.push(conflicting, []byte("BBBBB"))
	assert.ErrorIs(t, err, errOverlappingFragmentConflict)
}

func TestFragmentBufferDedupesIdenticalRetransmit(t *testing.T) {
	b := newFragmentBuffer(4096)

	h := &HandshakeHeader{Type: HandshakeTypeCertificate, Length: 5, MessageSequence: 0, FragmentOffset: 0, FragmentLength: 5}
	assert.NoError(t, b.push(h, []byte("AAAAA")))
	assert.NoError(t, b.push(h, []byte("AAAAA")))

	_, payload, ok := b.pop()
	assert.True(t, ok)
	assert.Equal(t, []byte("AAAAA"), payload)
}

func TestFragmentBufferOverflow(t *testing.T) {
	b := newFragmentBuffer(8)

	h := &HandshakeHeader{Type: HandshakeTypeCertificate, Length: 100, MessageSequence: 0, FragmentOffset: 0, FragmentLength: 20}
	err := b.push(h, make([]byte, 20))
	assert.ErrorIs(t, err, errFragmentBufferOverflow)
}
