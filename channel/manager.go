package channel

import (
	"sync"

	gattlink "github.com/veloxbt/gattlink"
)

// Manager owns the peer session table and the per-session channel
// state machine. It sits between registered upper-layer clients and
// the lower-layer Link, and feeds inbound traffic to the Dispatcher.
//
// All state transitions, table mutations and callback invocations are
// serialized on the manager's lock; lower-layer events and
// application calls may arrive on any goroutine and in any order.
type Manager struct {
	mu sync.Mutex

	cfg   Config
	link  Link
	disp  Dispatcher
	store BondedStore
	log   gattlink.Logger

	tab    sessionTable
	reg    registry
	srvChg *serviceChangeTracker

	// timeoutReason is resolved once from config: the reason code
	// reported when a connect attempt times out.
	timeoutReason gattlink.ConnReason
}

type Option func(*Manager)

func WithLogger(l gattlink.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func New(link Link, disp Dispatcher, store BondedStore, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:   cfg.withDefaults(),
		link:  link,
		disp:  disp,
		store: store,
	}

	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = gattlink.GetLogger().ChildLogger(map[string]interface{}{"pkg": "channel"})
	}

	m.timeoutReason = gattlink.ReasonTimeout
	if m.cfg.LegacyTimeoutReason {
		m.timeoutReason = gattlink.ReasonUnknown
	}

	m.srvChg = newServiceChangeTracker(store, disp, m.cfg, m.log)
	return m
}

// Register adds an upper-layer client and returns its id.
func (m *Manager) Register(c gattlink.Client) (gattlink.ClientID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.reg.add(c)
	if err != nil {
		return 0, err
	}
	return r.id, nil
}

// Deregister removes a client, releasing every link hold it owns.
func (m *Manager) Deregister(id gattlink.ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.reg.get(id)
	if r == nil {
		return
	}
	m.tab.forEachLive(func(s *session) {
		if _, ok := s.holders[id]; ok {
			m.release(id, s)
		}
	})
	m.reg.remove(id)
}

// SetBackground adds or removes the peer from the client's background
// connection filter. Sessions opened by the peer while the filter
// matches make the client a holder automatically.
func (m *Manager) SetBackground(id gattlink.ClientID, peer gattlink.Addr, allowed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.reg.get(id)
	if r == nil {
		return false
	}
	if allowed {
		r.background[peer.String()] = struct{}{}
	} else {
		delete(r.background, peer.String())
	}
	return true
}

// Connect starts (or joins) a connection to the peer on behalf of the
// client. The result arrives through the client's connection handler;
// false means the attempt was not even started.
func (m *Manager) Connect(id gattlink.ClientID, peer gattlink.Addr, tr gattlink.Transport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.reg.get(id)
	if r == nil {
		m.log.Warnf("connect from unregistered client %d", id)
		return false
	}

	if s := m.tab.find(peer, tr); s != nil {
		if s.st == stateClosing {
			m.log.Infof("%s: must finish disconnection before new connection", peer)
			return false
		}
		if s.st == stateOpen && len(s.holders) == 0 && tr == gattlink.TransportLE {
			// link is up but idle; take it over
			m.hold(id, s, true)
		}
		r.direct[peer.String()] = struct{}{}
		return true
	}

	if tr == gattlink.TransportBREDR && !m.cfg.BREDREnabled {
		m.log.Warnf("dynamic channel to %s rejected, BR/EDR disabled", peer)
		return false
	}

	s, err := m.tab.allocate(peer, tr, stateConnecting)
	if err != nil {
		m.log.Errorf("connect %s: %v", peer, err)
		return false
	}

	if tr == gattlink.TransportLE {
		s.cid = FixedCID
		if err := m.link.ConnectFixed(peer); err != nil {
			m.log.Errorf("connect %s: %v", peer, err)
			s.st = stateClosed
			m.tab.free(s)
			return false
		}
	} else {
		// a client that accepts background connections from this peer
		// leaves the session accept-capable for the tie-break
		s.passive = r.wantsBackground(peer)
		s.payload = DefaultDynamicPayload

		cid := m.link.ConnectDynamic(peer, AttPSM)
		if cid == 0 {
			m.log.Errorf("connect %s: dynamic channel request failed", peer)
			s.st = stateClosed
			m.tab.free(s)
			return false
		}
		s.cid = cid
	}

	r.direct[peer.String()] = struct{}{}
	return true
}

// Disconnect tears the peer's session down on behalf of the client.
func (m *Manager) Disconnect(id gattlink.ClientID, peer gattlink.Addr, tr gattlink.Transport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r := m.reg.get(id); r != nil {
		delete(r.direct, peer.String())
	}

	s := m.tab.find(peer, tr)
	if s == nil {
		m.log.Warnf("disconnect %s: no session", peer)
		m.link.CancelConnect(peer)
		return false
	}

	// quietly drop the caller's hold; the policy side effects are
	// pointless since teardown follows immediately
	delete(s.holders, id)

	m.disconnectSession(s)
	return true
}

// HoldLink marks the client as requiring the peer's session to stay
// open. Idempotent.
func (m *Manager) HoldLink(id gattlink.ClientID, peer gattlink.Addr, tr gattlink.Transport, checkLink bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reg.get(id) == nil {
		return false
	}
	s := m.tab.find(peer, tr)
	if s == nil {
		m.log.Warnf("hold %s: no session", peer)
		return false
	}
	return m.hold(id, s, checkLink)
}

// ReleaseLink drops the client's hold. Returns false when the client
// was not a holder; repeated releases are harmless.
func (m *Manager) ReleaseLink(id gattlink.ClientID, peer gattlink.Addr, tr gattlink.Transport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, tr)
	if s == nil {
		m.log.Warnf("release %s: no session", peer)
		return false
	}
	return m.release(id, s)
}

// DatabaseChanged records that the local attribute database advanced
// a generation: every tracked peer now owes a service-changed
// indication, delivered immediately to the ones currently connected.
func (m *Manager) DatabaseChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.srvChg.markAllPending()
	m.tab.forEachLive(func(s *session) {
		if s.st == stateOpen {
			m.srvChg.sendIfDue(s.peer)
		}
	})
}

// Consolidate re-keys the peer's LE session from its resolvable
// private address to the identity address and re-announces the
// connection under the new address.
func (m *Manager) Consolidate(identity, rpa gattlink.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(rpa, gattlink.TransportLE)
	if s == nil {
		return
	}
	m.log.Infof("consolidate %s -> %s", rpa, identity)
	s.peer = identity
	m.sendConnCallback(s)
}

func (m *Manager) setState(s *session, st state) {
	m.log.Debugf("%s channel state %s -> %s", s.peer, s.st, st)
	s.st = st
}

// disconnectSession drives a session toward closed, whichever state
// it is in. Requesting teardown while already closing is a no-op.
func (m *Manager) disconnectSession(s *session) {
	switch {
	case s.st == stateClosing:
		m.log.Debugf("%s already in closing state", s.peer)

	case s.fixed():
		if s.st == stateOpen {
			if !m.link.RemoveFixed(s.peer) {
				m.log.Warnf("unable to remove fixed channel for %s", s.peer)
			}
			m.setState(s, stateClosing)
		} else {
			// connect still pending: withdraw it, no teardown
			// handshake to wait for
			m.link.CancelConnect(s.peer)
			m.cleanup(s.peer, gattlink.ReasonLocalHost, s.transport)
		}

	default:
		if s.st == stateOpen || s.st == stateConfiguring {
			m.dynamicDisconnect(s.cid)
		} else {
			m.log.Debugf("dynamic channel for %s not opened", s.peer)
		}
	}
}

// dynamicDisconnect requests teardown of a dynamic channel and
// reports the session closed to upper layers.
func (m *Manager) dynamicDisconnect(cid uint16) {
	if !m.link.Disconnect(cid) {
		m.log.Warnf("unable to send disconnect request for cid 0x%04x", cid)
	}

	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	m.srvChg.observe(s.peer)
	m.cleanup(s.peer, gattlink.ReasonLocalHost, s.transport)
}

// cleanup finishes a disconnect: the session reaches closed, clients
// are told with the reason code, and the slot returns to the pool.
func (m *Manager) cleanup(peer gattlink.Addr, reason gattlink.ConnReason, tr gattlink.Transport) {
	s := m.tab.find(peer, tr)
	if s == nil {
		m.log.Debugf("cleanup %s: no session", peer)
		return
	}

	m.disarmIdle(s)
	for id := range s.holders {
		delete(s.holders, id)
	}
	m.setState(s, stateClosed)

	slot := s.slot
	key := peer.String()
	m.reg.forEach(func(r *registrant) {
		delete(r.direct, key)
		r.client.HandleConnection(gattlink.ConnectionEvent{
			Client:    r.id,
			Peer:      peer,
			Conn:      gattlink.MakeConnID(slot, r.id),
			Connected: false,
			Reason:    reason,
			Transport: tr,
		})
	})

	m.tab.free(s)
}
