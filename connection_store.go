package dtls

import (
	"container/list"
	"net"
	"sync"
	"time"
)

// connectionStore is the server's capacity-bounded table of live
// connections, keyed by remote address and, when Connection IDs are in
// use, by CID as well, so a rebind to a new address can still be routed
// to the right *Conn (spec §4.5 Connection Store; RFC 9146 CID purpose).
type connectionStore struct {
	mu sync.Mutex

	byAddr map[string]*list.Element
	byCID  map[string]*list.Element
	lru    *list.List // most-recently-used at the front

	maxEntries int
	staleAfter time.Duration
}

type storeEntry struct {
	addr       string
	cid        string
	conn       *Conn
	lastActive time.Time
}

func newConnectionStore(maxEntries int, staleAfter time.Duration) *connectionStore {
	return &connectionStore{
		byAddr:     make(map[string]*list.Element),
		byCID:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		staleAfter: staleAfter,
	}
}

// put inserts or refreshes a connection. If the store is at capacity, it
// evicts the least-recently-used entry, unless that entry is still
// within staleAfter of activity, in which case put refuses the new
// connection (spec §4.5 edge case: full store under a live workload).
func (s *connectionStore) put(addr net.Addr, cid []byte, c *Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addr.String()
	if el, ok := s.byAddr[key]; ok {
		s.touch(el)
		return nil
	}

	if s.lru.Len() >= s.maxEntries {
		oldest := s.lru.Back()
		if oldest != nil {
			entry := oldest.Value.(*storeEntry)
			if time.Since(entry.lastActive) < s.staleAfter {
				return errConnectionStoreFull
			}
			s.removeElement(oldest)
		}
	}

	entry := &storeEntry{addr: key, cid: string(cid), conn: c, lastActive: time.Now()}
	el := s.lru.PushFront(entry)
	s.byAddr[key] = el
	if len(cid) > 0 {
		s.byCID[string(cid)] = el
	}
	return nil
}

func (s *connectionStore) getByAddr(addr net.Addr) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byAddr[addr.String()]
	if !ok {
		return nil, false
	}
	s.touch(el)
	return el.Value.(*storeEntry).conn, true
}

func (s *connectionStore) getByCID(cid []byte) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byCID[string(cid)]
	if !ok {
		return nil, false
	}
	s.touch(el)
	return el.Value.(*storeEntry).conn, true
}

// rebind moves an existing CID-identified connection's address mapping,
// the Connector's response to a NAT rebind (spec §4.5, RFC 9146 §6).
func (s *connectionStore) rebind(cid []byte, newAddr net.Addr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byCID[string(cid)]
	if !ok {
		return false
	}
	entry := el.Value.(*storeEntry)
	delete(s.byAddr, entry.addr)
	entry.addr = newAddr.String()
	s.byAddr[entry.addr] = el
	s.touch(el)
	return true
}

func (s *connectionStore) remove(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byAddr[addr.String()]; ok {
		s.removeElement(el)
	}
}

func (s *connectionStore) touch(el *list.Element) {
	el.Value.(*storeEntry).lastActive = time.Now()
	s.lru.MoveToFront(el)
}

func (s *connectionStore) removeElement(el *list.Element) {
	entry := el.Value.(*storeEntry)
	delete(s.byAddr, entry.addr)
	if entry.cid != "" {
		delete(s.byCID, entry.cid)
	}
	s.lru.Remove(el)
}

// sweepStale evicts entries idle for longer than staleAfter, run
// periodically by the Connector (spec §4.5 stale session eviction).
func (s *connectionStore) sweepStale() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []*Conn
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*storeEntry)
		if time.Since(entry.lastActive) > s.staleAfter {
			evicted = append(evicted, entry.conn)
			s.removeElement(el)
		}
		el = prev
	}
	return evicted
}

func (s *connectionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
