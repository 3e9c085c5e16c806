package channel

import (
	"sync"
	"testing"
	"time"

	gattlink "github.com/veloxbt/gattlink"
)

// fakeLink records every request the manager issues and lets tests
// script the results.
type fakeLink struct {
	mu sync.Mutex

	connectFixedErr error
	nextCID         uint16
	linkUp          bool

	fixedConnects []string
	cancels       []string
	removedFixed  []string
	dynConnects   []string
	disconnected  []uint16
}

func newFakeLink() *fakeLink {
	return &fakeLink{nextCID: 0x0041, linkUp: true}
}

func (l *fakeLink) ConnectFixed(peer gattlink.Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connectFixedErr != nil {
		return l.connectFixedErr
	}
	l.fixedConnects = append(l.fixedConnects, peer.String())
	return nil
}

func (l *fakeLink) CancelConnect(peer gattlink.Addr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancels = append(l.cancels, peer.String())
	return true
}

func (l *fakeLink) RemoveFixed(peer gattlink.Addr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removedFixed = append(l.removedFixed, peer.String())
	return true
}

func (l *fakeLink) ConnectDynamic(peer gattlink.Addr, psm uint16) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nextCID == 0 {
		return 0
	}
	l.dynConnects = append(l.dynConnects, peer.String())
	cid := l.nextCID
	l.nextCID++
	return cid
}

func (l *fakeLink) Disconnect(cid uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected = append(l.disconnected, cid)
	return true
}

func (l *fakeLink) LinkUp(peer gattlink.Addr, tr gattlink.Transport) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.linkUp
}

func (l *fakeLink) removedFixedCount(peer gattlink.Addr) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.removedFixed {
		if p == peer.String() {
			n++
		}
	}
	return n
}

func (l *fakeLink) disconnectedCIDs() []uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint16, len(l.disconnected))
	copy(out, l.disconnected)
	return out
}

type pduRec struct {
	peer    string
	cid     uint16
	opcode  byte
	payload []byte
}

// fakeDispatcher records PDUs, resume requests and indications. The
// optional trace slice is shared with test clients so ordering across
// the dispatcher/client boundary can be asserted.
type fakeDispatcher struct {
	mu sync.Mutex

	trace *[]string

	pdus         []pduRec
	resumed      []string
	indicated    []string
	indicatedVal [][]byte
	indicateErr  error
}

func (d *fakeDispatcher) HandlePDU(peer gattlink.Addr, cid uint16, opcode byte, payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pdus = append(d.pdus, pduRec{peer: peer.String(), cid: cid, opcode: opcode, payload: payload})
}

func (d *fakeDispatcher) ResumePending(peer gattlink.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumed = append(d.resumed, peer.String())
	if d.trace != nil {
		*d.trace = append(*d.trace, "resume")
	}
}

func (d *fakeDispatcher) Indicate(peer gattlink.Addr, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indicateErr != nil {
		return d.indicateErr
	}
	d.indicated = append(d.indicated, peer.String())
	d.indicatedVal = append(d.indicatedVal, value)
	return nil
}

func (d *fakeDispatcher) indications() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.indicated))
	copy(out, d.indicated)
	return out
}

// fakeStore is an in-memory BondedStore.
type fakeStore struct {
	mu         sync.Mutex
	bonded     map[string]bool
	names      map[string]string
	svcClients []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bonded: make(map[string]bool),
		names:  make(map[string]string),
	}
}

func (s *fakeStore) IsBonded(peer gattlink.Addr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonded[peer.String()]
}

func (s *fakeStore) StoredName(peer gattlink.Addr) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.names[peer.String()]
	return n, ok
}

func (s *fakeStore) ServiceChangeClients() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.svcClients))
	copy(out, s.svcClients)
	return out, nil
}

func (s *fakeStore) AddServiceChangeClient(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.svcClients = append(s.svcClients, addr)
	return nil
}

// testClient records connection events.
type testClient struct {
	mu     sync.Mutex
	events []gattlink.ConnectionEvent
}

func (c *testClient) HandleConnection(ev gattlink.ConnectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *testClient) all() []gattlink.ConnectionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gattlink.ConnectionEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *testClient) last(t *testing.T) gattlink.ConnectionEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		t.Fatal("no connection events recorded")
	}
	return c.events[len(c.events)-1]
}

// congClient additionally records congestion events, optionally into
// a shared trace.
type congClient struct {
	testClient
	trace *[]string

	mu   sync.Mutex
	cong []string
}

func (c *congClient) HandleCongestion(conn gattlink.ConnID, congested bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := "uncongested"
	if congested {
		state = "congested"
	}
	c.cong = append(c.cong, state)
	if c.trace != nil {
		*c.trace = append(*c.trace, "notify")
	}
}

func (c *congClient) congestion() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cong))
	copy(out, c.cong)
	return out
}

type harness struct {
	m     *Manager
	link  *fakeLink
	disp  *fakeDispatcher
	store *fakeStore
}

func newHarness(t *testing.T, mut ...func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	for _, f := range mut {
		f(&cfg)
	}

	link := newFakeLink()
	disp := &fakeDispatcher{}
	st := newFakeStore()
	m := New(link, disp, st, cfg)
	return &harness{m: m, link: link, disp: disp, store: st}
}

func (h *harness) register(t *testing.T) (gattlink.ClientID, *testClient) {
	t.Helper()
	c := &testClient{}
	id, err := h.m.Register(c)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return id, c
}

// session peeks into the table. Test-only.
func (h *harness) session(peer gattlink.Addr, tr gattlink.Transport) *session {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.m.tab.find(peer, tr)
}

func (h *harness) sessionState(peer gattlink.Addr, tr gattlink.Transport) (state, bool) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	s := h.m.tab.find(peer, tr)
	if s == nil {
		return stateClosed, false
	}
	return s.st, true
}

func (h *harness) holderCount(peer gattlink.Addr, tr gattlink.Transport) int {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	s := h.m.tab.find(peer, tr)
	if s == nil {
		return 0
	}
	return len(s.holders)
}

// waitUntil polls for a condition; timers fire on their own
// goroutines.
func waitUntil(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
