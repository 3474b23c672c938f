package pairing

import "time"

// WaitEntry is one unpaired client waiting for a partner.
type WaitEntry struct {
	ClientID  string
	Interests []string
	JoinedAt  time.Time
}

// Pool is the ordered collection of waiting clients. Entries keep insertion
// order, which by construction is non-decreasing join time, so a scan from
// the front visits the longest-waiting clients first. The index map gives
// O(1) membership checks.
type Pool struct {
	entries []*WaitEntry
	index   map[string]*WaitEntry
}

// NewPool creates an empty waiting pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]*WaitEntry)}
}

// Insert appends an entry to the pool. It refuses a client that already has
// an entry and reports whether the insert happened.
func (p *Pool) Insert(e *WaitEntry) bool {
	if _, ok := p.index[e.ClientID]; ok {
		return false
	}
	p.entries = append(p.entries, e)
	p.index[e.ClientID] = e
	return true
}

// Remove deletes the entry for clientID. Idempotent; reports whether an
// entry existed.
func (p *Pool) Remove(clientID string) bool {
	if _, ok := p.index[clientID]; !ok {
		return false
	}
	delete(p.index, clientID)
	for i, e := range p.entries {
		if e.ClientID == clientID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether clientID currently has a waiting entry.
func (p *Pool) Contains(clientID string) bool {
	_, ok := p.index[clientID]
	return ok
}

// Len returns the number of waiting clients.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Entries returns the waiting entries in insertion order. The slice is the
// pool's backing store; callers must not mutate it.
func (p *Pool) Entries() []*WaitEntry {
	return p.entries
}
