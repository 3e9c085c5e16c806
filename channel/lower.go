package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// Lower-layer event entry points. The Link implementation delivers
// these from whatever goroutine it likes; the manager lock makes
// every interleaving with application calls safe.

// FixedChannelChanged reports the LE fixed channel coming up or going
// down. The fixed channel needs no configure handshake, so up means
// the channel is immediately usable.
func (m *Manager) FixedChannelChanged(peer gattlink.Addr, connected bool, reason uint16, tr gattlink.Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tr == gattlink.TransportBREDR {
		m.log.Warnf("ignoring fixed channel event on BR/EDR for %s", peer)
		return
	}

	m.log.Debugf("fixed channel for %s %s", peer, updown(connected))

	tracked := m.srvChg.observe(peer)

	if !connected {
		m.cleanup(peer, gattlink.ConnReason(reason), tr)
		return
	}

	s := m.tab.find(peer, tr)
	if s != nil {
		// we initiated this connection
		if s.st == stateConnecting {
			m.setState(s, stateOpen)
			s.payload = DefaultLEPayload
			m.sendConnCallback(s)
		}
		if tracked {
			m.srvChg.sendIfDue(peer)
		}
		return
	}

	// inbound or background connection
	s, err := m.tab.allocate(peer, tr, stateOpen)
	if err != nil {
		m.log.Errorf("inbound fixed channel from %s: %v", peer, err)
		if m.cfg.DropWhenExhausted {
			// a fixed channel we cannot track is no reason to keep
			// the radio link
			m.link.RemoveFixed(peer)
		}
		return
	}
	s.cid = FixedCID
	s.passive = true
	s.payload = DefaultLEPayload
	m.sendConnCallback(s)
	if tracked {
		m.srvChg.sendIfDue(peer)
	}
}

// ConnectTimeout reports that a pending connect attempt to the peer
// timed out in the lower layer's connection manager. The reason code
// handed to clients is the strategy picked at construction.
func (m *Manager) ConnectTimeout(peer gattlink.Addr) {
	m.FixedChannelChanged(peer, false, uint16(m.timeoutReason), gattlink.TransportLE)
}

// FixedData delivers inbound bytes from the fixed channel. Data for
// an unknown peer, or for a channel that is not open, is dropped.
func (m *Manager) FixedData(peer gattlink.Addr, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, gattlink.TransportLE)
	if s == nil {
		m.log.Debugf("data from %s with no session, dropped", peer)
		return
	}
	if s.st != stateOpen {
		m.log.Warnf("data from %s while %s, dropped", peer, s.st)
		return
	}
	m.deliver(s, data)
}

// FixedCongestion reports a congestion change on the fixed channel.
func (m *Manager) FixedCongestion(peer gattlink.Addr, congested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, gattlink.TransportLE)
	if s == nil {
		return
	}
	m.relayCongestion(s, congested)
}

// DynamicConnectInd handles an inbound dynamic channel connect, the
// case where the peer is acting as initiator. A simultaneous connect
// on a session that is accept-capable and not yet open is resolved in
// the peer's favor; the displaced handle is remembered and torn down
// if it ever confirms.
func (m *Manager) DynamicConnectInd(peer gattlink.Addr, cid uint16, psm uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Infof("connect indication from %s, cid 0x%04x psm 0x%04x", peer, cid, psm)

	if !m.cfg.BREDREnabled {
		m.log.Warnf("dynamic channel from %s rejected, BR/EDR disabled", peer)
		m.link.Disconnect(cid)
		return
	}

	s := m.tab.find(peer, gattlink.TransportBREDR)
	if s == nil {
		s, err := m.tab.allocate(peer, gattlink.TransportBREDR, stateConfiguring)
		if err != nil {
			m.log.Errorf("inbound channel from %s: %v", peer, err)
			m.link.Disconnect(cid)
			return
		}
		s.cid = cid
		s.passive = true
		s.payload = DefaultDynamicPayload
		return
	}

	if !s.passive || s.st == stateOpen || s.st == stateClosing {
		m.log.Infof("rejecting inbound channel 0x%04x from %s", cid, peer)
		m.link.Disconnect(cid)
		return
	}

	// both sides connected at once; the inbound channel wins
	s.conflictCID = s.cid
	s.cid = cid
	m.setState(s, stateConfiguring)
	m.log.Debugf("conflicting handle 0x%04x recorded for %s", s.conflictCID, s.peer)
}

// DynamicConnectCfm handles the connect confirm for a dynamic channel
// we initiated. Confirms for a handle that lost the simultaneous
// connect tie-break tear that handle down; confirms for freed or
// reused slots fall through the lookup and are dropped.
func (m *Manager) DynamicConnectCfm(cid uint16, result uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.tab.findByConflictCID(cid); s != nil {
		if result == ResultOK {
			// the peer accepted our attempt as well; exactly one
			// channel may survive
			m.log.Debugf("tearing down conflicting handle 0x%04x for %s", cid, s.peer)
			m.link.Disconnect(cid)
		}
		s.conflictCID = 0
		return
	}

	s := m.tab.findByCID(cid)
	if s == nil {
		m.log.Debugf("stale connect confirm for cid 0x%04x, dropped", cid)
		return
	}

	m.log.Debugf("connect confirm for %s, result %d, state %s", s.peer, result, s.st)

	if s.st == stateConnecting && result == ResultOK {
		m.setState(s, stateConfiguring)
		return
	}
	m.dynamicError(cid, result)
}

// ChannelConfig carries the negotiated parameters of a dynamic
// channel configure exchange.
type ChannelConfig struct {
	MTUPresent bool
	MTU        uint16
}

// DynamicConfigInd handles the peer's configure request: the
// negotiated payload is the smaller of the peer's offer and ours.
func (m *Manager) DynamicConfigInd(cid uint16, cc ChannelConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyConfig(cid, cc)
}

// DynamicConfigCfm completes the configure handshake and opens the
// channel.
func (m *Manager) DynamicConfigCfm(cid uint16, cc ChannelConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyConfig(cid, cc)

	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	if s.st != stateConfiguring {
		m.log.Debugf("config confirm for %s while %s, ignored", s.peer, s.st)
		return
	}

	m.setState(s, stateOpen)

	tracked := m.srvChg.observe(s.peer)
	if tracked {
		m.srvChg.sendIfDue(s.peer)
	}

	m.sendConnCallback(s)
}

func (m *Manager) applyConfig(cid uint16, cc ChannelConfig) {
	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	if cc.MTUPresent && cc.MTU < DefaultDynamicPayload {
		s.payload = cc.MTU
	} else {
		s.payload = DefaultDynamicPayload
	}
}

// DynamicDisconnectInd handles a peer-initiated teardown.
func (m *Manager) DynamicDisconnectInd(cid uint16, ackNeeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	m.srvChg.observe(s.peer)
	m.cleanup(s.peer, gattlink.ReasonPeerTerminated, s.transport)
}

// DynamicError handles a transport-level failure on a dynamic
// channel.
func (m *Manager) DynamicError(cid uint16, result uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dynamicError(cid, result)
}

func (m *Manager) dynamicError(cid uint16, result uint16) {
	if s := m.tab.findByConflictCID(cid); s != nil {
		// the losing handle failed on its own; nothing to tear down
		m.log.Debugf("conflicting handle 0x%04x cleared for %s", cid, s.peer)
		s.conflictCID = 0
		return
	}

	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	if s.st == stateConnecting {
		m.cleanup(s.peer, gattlink.ReasonChannelFailure, s.transport)
	} else {
		m.dynamicDisconnect(cid)
	}
}

// DynamicData delivers inbound bytes from a dynamic channel. Data on
// a channel that is not open is dropped to keep a not-yet-validated
// channel out of the protocol.
func (m *Manager) DynamicData(cid uint16, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.findByCID(cid)
	if s == nil || s.st != stateOpen {
		m.log.Debugf("data on cid 0x%04x dropped", cid)
		return
	}
	m.deliver(s, data)
}

// DynamicCongestion reports a congestion change on a dynamic channel.
func (m *Manager) DynamicCongestion(cid uint16, congested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.findByCID(cid)
	if s == nil {
		return
	}
	m.relayCongestion(s, congested)
}

// PHYUpdated fans a PHY change on the peer's LE link out to every
// client that handles it.
func (m *Manager) PHYUpdated(peer gattlink.Addr, txPHY, rxPHY uint8, status uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, gattlink.TransportLE)
	if s == nil {
		return
	}
	m.reg.forEach(func(r *registrant) {
		if h, ok := r.client.(gattlink.PHYUpdateHandler); ok {
			h.HandlePHYUpdate(gattlink.PHYUpdateEvent{
				Client: r.id,
				Conn:   s.connID(r.id),
				TxPHY:  txPHY,
				RxPHY:  rxPHY,
				Status: status,
			})
		}
	})
}

// ConnParamsUpdated fans updated connection parameters out to every
// client that handles them.
func (m *Manager) ConnParamsUpdated(peer gattlink.Addr, interval, latency, timeout uint16, status uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, gattlink.TransportLE)
	if s == nil {
		return
	}
	m.reg.forEach(func(r *registrant) {
		if h, ok := r.client.(gattlink.ConnParamsHandler); ok {
			h.HandleConnParams(gattlink.ConnParamsEvent{
				Client:   r.id,
				Conn:     s.connID(r.id),
				Interval: interval,
				Latency:  latency,
				Timeout:  timeout,
				Status:   status,
			})
		}
	})
}

// SubrateChanged fans a subrate change out to every client that
// handles it.
func (m *Manager) SubrateChanged(peer gattlink.Addr, factor, latency, contNum, timeout uint16, status uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.tab.find(peer, gattlink.TransportLE)
	if s == nil {
		return
	}
	m.reg.forEach(func(r *registrant) {
		if h, ok := r.client.(gattlink.SubrateHandler); ok {
			h.HandleSubrateChange(gattlink.SubrateEvent{
				Client:             r.id,
				Conn:               s.connID(r.id),
				Factor:             factor,
				Latency:            latency,
				ContinuationNumber: contNum,
				Timeout:            timeout,
				Status:             status,
			})
		}
	})
}

// deliver hands one validated PDU to the dispatcher.
func (m *Manager) deliver(s *session, data []byte) {
	if len(data) == 0 {
		m.log.Errorf("empty PDU from %s, ignored", s.peer)
		return
	}
	m.disp.HandlePDU(s.peer, s.cid, data[0], data[1:])
}

func updown(connected bool) string {
	if connected {
		return "up"
	}
	return "down"
}
