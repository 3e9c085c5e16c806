package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// sendConnCallback announces an open session to the upper layer.
// Every client whose direct request or background filter names the
// peer becomes a holder first; then every registered client is told
// the connection is up, each under its own logical connection id.
// Multiple profiles share one physical link this way.
func (m *Manager) sendConnCallback(s *session) {
	key := s.peer.String()

	m.reg.forEach(func(r *registrant) {
		if r.wantsPeer(s.peer) {
			m.hold(r.id, s, true)
		}
		if _, ok := r.direct[key]; ok {
			m.log.Debugf("direct connect to %s satisfied for client %d", s.peer, r.id)
			delete(r.direct, key)
		}

		r.client.HandleConnection(gattlink.ConnectionEvent{
			Client:    r.id,
			Peer:      s.peer,
			Conn:      s.connID(r.id),
			Connected: true,
			Reason:    gattlink.ReasonOK,
			Transport: s.transport,
		})
	})

	if !s.fixed() {
		return
	}
	if len(s.holders) > 0 {
		m.disarmIdle(s)
	} else {
		m.armIdle(s)
	}
}
