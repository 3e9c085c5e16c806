package channel

import (
	"encoding/binary"
	"strings"

	gattlink "github.com/veloxbt/gattlink"
)

// serviceChangeTracker keeps the per-bonded-peer record of whether a
// service-changed indication is owed. The peer list survives process
// restarts through the BondedStore; the pending bit is process-local.
type serviceChangeTracker struct {
	recs       map[string]*srvChgRecord
	store      BondedStore
	disp       Dispatcher
	suppressed map[string]struct{}

	startHandle uint16
	endHandle   uint16

	log gattlink.Logger
}

type srvChgRecord struct {
	pending bool
}

func newServiceChangeTracker(store BondedStore, disp Dispatcher, cfg Config, log gattlink.Logger) *serviceChangeTracker {
	t := &serviceChangeTracker{
		recs:        make(map[string]*srvChgRecord),
		store:       store,
		disp:        disp,
		suppressed:  make(map[string]struct{}),
		startHandle: cfg.ServiceChangeStartHandle,
		endHandle:   cfg.ServiceChangeEndHandle,
		log:         log,
	}
	for _, n := range cfg.ServiceChangeSuppressedNames {
		t.suppressed[n] = struct{}{}
	}

	if store == nil {
		return t
	}
	addrs, err := store.ServiceChangeClients()
	if err != nil {
		log.Warnf("load service change clients: %v", err)
		return t
	}
	for _, a := range addrs {
		t.recs[strings.ToLower(a)] = &srvChgRecord{}
	}
	return t
}

// observe notes connection activity for the peer. Returns true when
// the peer was already tracked. A bonded peer seen for the first time
// starts being tracked, with nothing owed yet.
func (t *serviceChangeTracker) observe(peer gattlink.Addr) bool {
	if _, ok := t.recs[peer.String()]; ok {
		return true
	}
	if t.store == nil || !t.store.IsBonded(peer) {
		return false
	}

	t.recs[peer.String()] = &srvChgRecord{}
	if err := t.store.AddServiceChangeClient(peer.String()); err != nil {
		t.log.Warnf("persist service change client %s: %v", peer, err)
	}
	return false
}

// markAllPending records a database generation advance: every tracked
// peer now owes an indication.
func (t *serviceChangeTracker) markAllPending() {
	for _, rec := range t.recs {
		rec.pending = true
	}
}

// sendIfDue delivers the owed indication to the peer, unless its
// stored device name is on the suppression list. Suppression leaves
// the pending bit set so a compliant reconnect, or a list change,
// still gets a chance.
func (t *serviceChangeTracker) sendIfDue(peer gattlink.Addr) {
	rec := t.recs[peer.String()]
	if rec == nil || !rec.pending {
		return
	}

	if t.store != nil {
		if name, ok := t.store.StoredName(peer); ok {
			if _, skip := t.suppressed[name]; skip {
				t.log.Debugf("service changed indication suppressed for %s (%q)", peer, name)
				return
			}
		}
	}

	value := make([]byte, 4)
	binary.BigEndian.PutUint16(value, t.startHandle)
	binary.BigEndian.PutUint16(value[2:], t.endHandle)

	if err := t.disp.Indicate(peer, value); err != nil {
		t.log.Warnf("service changed indication to %s: %v", peer, err)
		return
	}
	t.log.Infof("service changed indication sent to %s", peer)
	rec.pending = false
}
