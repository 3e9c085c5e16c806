package channel

import (
	"time"

	gattlink "github.com/veloxbt/gattlink"
)

// session is the per-peer channel record. A session exists in the
// table if and only if its state is not closed, and at most one
// session exists per (peer, transport) pair.
type session struct {
	slot uint8

	// gen increments every time the slot is freed. Handles derived
	// from the session embed the generation so stale asynchronous
	// callbacks can be told apart from the slot's next occupant.
	gen uint32

	peer      gattlink.Addr
	transport gattlink.Transport
	st        state

	// cid is the transport channel. FixedCID on the LE path, the
	// lower layer's dynamic channel id on the classic path, 0 while a
	// dynamic channel has not been assigned yet.
	cid uint16

	// conflictCID records the handle displaced by the simultaneous
	// connect tie-break. It is torn down if its confirm arrives OK.
	conflictCID uint16

	// passive marks sessions created from an inbound indication.
	passive bool

	payload uint16

	holders   map[gattlink.ClientID]struct{}
	idleTimer *time.Timer
}

type ref struct {
	slot uint8
	gen  uint32
}

func (s *session) ref() ref {
	return ref{slot: s.slot, gen: s.gen}
}

func (s *session) live() bool {
	return s.st != stateClosed
}

func (s *session) fixed() bool {
	return s.cid == FixedCID
}

func (s *session) connID(client gattlink.ClientID) gattlink.ConnID {
	return gattlink.MakeConnID(s.slot, client)
}

// sessionTable is the fixed-capacity registry of sessions. All
// mutation funnels through allocate and free, under the manager's
// lock.
type sessionTable struct {
	slots [MaxSessions]session
}

func (t *sessionTable) find(peer gattlink.Addr, tr gattlink.Transport) *session {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live() && s.transport == tr && s.peer.String() == peer.String() {
			return s
		}
	}
	return nil
}

// findByCID looks a session up by its dynamic channel id. The fixed
// channel is shared across peers and is never a valid key here.
func (t *sessionTable) findByCID(cid uint16) *session {
	if cid == FixedCID || cid == 0 {
		return nil
	}
	for i := range t.slots {
		s := &t.slots[i]
		if s.live() && s.cid == cid {
			return s
		}
	}
	return nil
}

func (t *sessionTable) findByConflictCID(cid uint16) *session {
	if cid == 0 {
		return nil
	}
	for i := range t.slots {
		s := &t.slots[i]
		if s.live() && s.conflictCID == cid {
			return s
		}
	}
	return nil
}

// get resolves a generation-checked handle. A ref minted before the
// slot was freed no longer resolves, whatever occupies the slot now.
func (t *sessionTable) get(r ref) *session {
	if int(r.slot) >= len(t.slots) {
		return nil
	}
	s := &t.slots[r.slot]
	if !s.live() || s.gen != r.gen {
		return nil
	}
	return s
}

func (t *sessionTable) allocate(peer gattlink.Addr, tr gattlink.Transport, initial state) (*session, error) {
	if initial == stateClosed {
		return nil, errInvalidInitialState
	}
	for i := range t.slots {
		s := &t.slots[i]
		if s.live() {
			continue
		}
		gen := s.gen
		*s = session{
			slot:      uint8(i),
			gen:       gen,
			peer:      peer,
			transport: tr,
			st:        initial,
			holders:   make(map[gattlink.ClientID]struct{}),
		}
		return s, nil
	}
	return nil, ErrExhausted
}

// free returns the slot to the pool. Only valid once the session has
// reached closed; the holder set must already be drained by then.
func (t *sessionTable) free(s *session) {
	if s.st != stateClosed {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	gen := s.gen + 1
	*s = session{slot: s.slot, gen: gen}
}

func (t *sessionTable) forEachLive(f func(*session)) {
	for i := range t.slots {
		if t.slots[i].live() {
			f(&t.slots[i])
		}
	}
}

