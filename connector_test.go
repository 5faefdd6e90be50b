package dtls

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDemuxedPacketConnRoutesReadsFromChannel(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer pc.Close()

	remote := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}
	dc := newDemuxedPacketConn(pc, remote)

	dc.readCh <- []byte("hello")
	buf := make([]byte, 16)
	n, err := dc.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	assert.Equal(t, remote, dc.RemoteAddr())
	assert.Equal(t, pc.LocalAddr(), dc.LocalAddr())
}

func TestDemuxedPacketConnReadReturnsErrClosedWhenChannelClosed(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer pc.Close()

	dc := newDemuxedPacketConn(pc, &net.UDPAddr{Port: 1})
	close(dc.readCh)

	_, err = dc.Read(make([]byte, 4))
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestDemuxedPacketConnWriteSendsToRemote(t *testing.T) {
	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer server.Close()

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer client.Close()

	dc := newDemuxedPacketConn(client, server.LocalAddr())
	_, err = dc.Write([]byte("ping"))
	assert.NoError(t, err)

	buf := make([]byte, 16)
	server.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := server.ReadFrom(buf)
	assert.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestConnectorAcceptReturnsErrConnClosedAfterClose(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)

	conn, err := newConnector(pc, &Config{InsecureSkipVerify: true, PSK: func([]string, []byte) ([]byte, error) { return []byte("k"), nil }})
	assert.NoError(t, err)

	assert.NoError(t, conn.Close())

	_, err = conn.Accept(context.Background())
	assert.ErrorIs(t, err, ErrConnClosed)
}
