package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// relayCongestion fans a congestion change out to every registered
// client that handles it. On the transition to uncongested the
// dispatcher's outbound queue is resumed first, so no client can
// observe "uncongested" while the queue is still paused.
func (m *Manager) relayCongestion(s *session, congested bool) {
	if !congested {
		m.disp.ResumePending(s.peer)
	}

	m.reg.forEach(func(r *registrant) {
		if h, ok := r.client.(gattlink.CongestionHandler); ok {
			h.HandleCongestion(s.connID(r.id), congested)
		}
	})
}
