package dtls

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func addrAt(port int) net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestConnectionStorePutAndGetByAddr(t *testing.T) {
	s := newConnectionStore(4, time.Hour)

	c := &Conn{}
	assert.NoError(t, s.put(addrAt(1), nil, c))

	got, ok := s.getByAddr(addrAt(1))
	assert.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, s.len())
}

func TestConnectionStoreGetByCID(t *testing.T) {
	s := newConnectionStore(4, time.Hour)

	c := &Conn{}
	assert.NoError(t, s.put(addrAt(1), []byte("cid-1"), c))

	got, ok := s.getByCID([]byte("cid-1"))
	assert.True(t, ok)
	assert.Same(t, c, got)

	_, ok = s.getByCID([]byte("no-such-cid"))
	assert.False(t, ok)
}

func TestConnectionStorePutExistingAddrRefreshesInstead(t *testing.T) {
	s := newConnectionStore(4, time.Hour)

	first := &Conn{}
	second := &Conn{}
	assert.NoError(t, s.put(addrAt(1), nil, first))
	assert.NoError(t, s.put(addrAt(1), nil, second))

	got, ok := s.getByAddr(addrAt(1))
	assert.True(t, ok)
	assert.Same(t, first, got, "put on an existing addr must touch, not replace, the entry")
	assert.Equal(t, 1, s.len())
}

func TestConnectionStoreEvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	s := newConnectionStore(2, time.Nanosecond)

	older := &Conn{}
	newer := &Conn{}
	assert.NoError(t, s.put(addrAt(1), nil, older))
	time.Sleep(2 * time.Millisecond)
	assert.NoError(t, s.put(addrAt(2), nil, newer))
	time.Sleep(2 * time.Millisecond)

	assert.NoError(t, s.put(addrAt(3), nil, &Conn{}))

	_, ok := s.getByAddr(addrAt(1))
	assert.False(t, ok, "oldest entry should have been evicted")
	assert.Equal(t, 2, s.len())
}

func TestConnectionStoreRefusesInsertWhenFullAndBusy(t *testing.T) {
	s := newConnectionStore(1, time.Hour)

	assert.NoError(t, s.put(addrAt(1), nil, &Conn{}))
	err := s.put(addrAt(2), nil, &Conn{})
	assert.ErrorIs(t, err, errConnectionStoreFull)
}

func TestConnectionStoreRebindMovesAddrMapping(t *testing.T) {
	s := newConnectionStore(4, time.Hour)

	c := &Conn{}
	assert.NoError(t, s.put(addrAt(1), []byte("cid-1"), c))

	ok := s.rebind([]byte("cid-1"), addrAt(2))
	assert.True(t, ok)

	_, ok = s.getByAddr(addrAt(1))
	assert.False(t, ok)

	got, ok := s.getByAddr(addrAt(2))
	assert.True(t, ok)
	assert.Same(t, c, got)
}

func TestConnectionStoreRebindUnknownCIDFails(t *testing.T) {
	s := newConnectionStore(4, time.Hour)
	assert.False(t, s.rebind([]byte("nope"), addrAt(2)))
}

func TestConnectionStoreRemove(t *testing.T) {
	s := newConnectionStore(4, time.Hour)

	assert.NoError(t, s.put(addrAt(1), []byte("cid-1"), &Conn{}))
	s.remove(addrAt(1))

	_, ok := s.getByAddr(addrAt(1))
	assert.False(t, ok)
	_, ok = s.getByCID([]byte("cid-1"))
	assert.False(t, ok)
	assert.Equal(t, 0, s.len())
}

func TestConnectionStoreSweepStale(t *testing.T) {
	s := newConnectionStore(4, 5*time.Millisecond)

	assert.NoError(t, s.put(addrAt(1), nil, &Conn{}))
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, s.put(addrAt(2), nil, &Conn{}))

	evicted := s.sweepStale()
	assert.Len(t, evicted, 1)

	assert.Equal(t, 1, s.len())
	_, ok := s.getByAddr(addrAt(2))
	assert.True(t, ok)
}
