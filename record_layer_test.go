package dtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLayerRoundTrip(t *testing.T) {
	rec := &RecordLayer{
		Header:  RecordLayerHeader{Epoch: 1, SequenceNumber: 42, ProtocolVersion: ProtocolVersion1_2},
		Content: &applicationData{data: []byte("hello dtls")},
	}

	raw, err := rec.Marshal()
	assert.NoError(t, err)
	assert.Equal(t, fixedRecordLayerHeaderSize+len("hello dtls"), len(raw))

	var decoded RecordLayer
	assert.NoError(t, decoded.Unmarshal(raw, 0))
	assert.Equal(t, uint16(1), decoded.Header.Epoch)
	assert.Equal(t, uint64(42), decoded.Header.SequenceNumber)

	appData, ok := decoded.Content.(*applicationData)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello dtls"), appData.data)
}

func TestUnpackDatagramSplitsCoalescedRecords(t *testing.T) {
	first := &RecordLayer{
		Header:  RecordLayerHeader{ProtocolVersion: ProtocolVersion1_2},
		Content: &applicationData{data: []byte("first")},
	}
	second := &RecordLayer{
		Header:  RecordLayerHeader{Epoch: 1, ProtocolVersion: ProtocolVersion1_2},
		Content: &applicationData{data: []byte("second-record")},
	}

	firstRaw, err := first.Marshal()
	assert.NoError(t, err)
	secondRaw, err := second.Marshal()
	assert.NoError(t, err)

	datagram := append(append([]byte{}, firstRaw...), secondRaw...)

	records, err := unpackDatagram(datagram, 0)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, firstRaw, records[0])
	assert.Equal(t, secondRaw, records[1])
}

func TestUnpackDatagramRejectsTruncatedRecord(t *testing.T) {
	_, err := unpackDatagram(make([]byte, fixedRecordLayerHeaderSize-1), 0)
	assert.ErrorIs(t, err, errInvalidPacketLength)
}

func TestRecordLayerHeaderRejectsBadProtocolVersion(t *testing.T) {
	h := RecordLayerHeader{ContentType: ContentTypeApplicationData, ProtocolVersion: ProtocolVersion{Major: 1, Minor: 1}}
	raw, err := h.Marshal()
	assert.NoError(t, err)

	var decoded RecordLayerHeader
	err = decoded.Unmarshal(raw, 0)
	assert.ErrorIs(t, err, errUnsupportedProtocolVersion)
}
