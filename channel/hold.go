package channel

import (
	"time"

	gattlink "github.com/veloxbt/gattlink"
)

// hold adds the client to the session's holder set. Adding a client
// that already holds the session is fine and still reports success.
// With checkLink set, a radio-verified fixed channel gets its idle
// timer disarmed on the spot.
func (m *Manager) hold(id gattlink.ClientID, s *session, checkLink bool) bool {
	if _, ok := s.holders[id]; ok {
		m.log.Debugf("client %d already holds %s", id, s.peer)
	} else {
		s.holders[id] = struct{}{}
		m.log.Debugf("client %d holds %s", id, s.peer)
	}

	if !checkLink {
		return true
	}
	if s.fixed() && m.link.LinkUp(s.peer, s.transport) {
		m.disarmIdle(s)
	}
	return true
}

// release drops the client's hold. Returns false when the client was
// not a holder. When the last holder leaves, a fixed channel arms the
// no-app idle timer and a dynamic channel is torn down immediately: a
// negotiated channel has no value without an application lease.
func (m *Manager) release(id gattlink.ClientID, s *session) bool {
	if _, ok := s.holders[id]; !ok {
		m.log.Warnf("client %d does not hold %s", id, s.peer)
		return false
	}
	delete(s.holders, id)
	m.log.Debugf("client %d released %s", id, s.peer)

	if len(s.holders) > 0 {
		return true
	}

	if s.fixed() {
		if m.link.LinkUp(s.peer, s.transport) {
			m.armIdle(s)
		}
	} else {
		m.log.Infof("no holders left, disconnecting dynamic channel for %s", s.peer)
		m.disconnectSession(s)
	}
	return true
}

// armIdle starts the no-app idle timer. Never armed while holders
// exist.
func (m *Manager) armIdle(s *session) {
	if len(s.holders) != 0 {
		return
	}
	m.disarmIdle(s)

	r := s.ref()
	d := time.Duration(m.cfg.IdleTimeout)
	s.idleTimer = time.AfterFunc(d, func() { m.idleExpired(r) })
	m.log.Infof("idle timer armed for %s (%s)", s.peer, d)
}

func (m *Manager) disarmIdle(s *session) {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
		m.log.Debugf("idle timer disarmed for %s", s.peer)
	}
}

// idleExpired is the timer callback. The generation check drops
// expirations that fire after the slot was freed or reused.
func (m *Manager) idleExpired(r ref) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.get(r)
	if s == nil {
		return
	}
	if len(s.holders) > 0 {
		return
	}
	m.log.Infof("idle timeout for %s", s.peer)
	m.disconnectSession(s)
}
