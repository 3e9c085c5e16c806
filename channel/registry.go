package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// registrant is one upper-layer client registration.
type registrant struct {
	id     gattlink.ClientID
	client gattlink.Client

	// direct holds peers with an outstanding application-initiated
	// connect attempt by this client.
	direct map[string]struct{}

	// background holds peers this client allows inbound or background
	// connections from.
	background map[string]struct{}
}

func (r *registrant) wantsBackground(peer gattlink.Addr) bool {
	_, ok := r.background[peer.String()]
	return ok
}

func (r *registrant) wantsPeer(peer gattlink.Addr) bool {
	key := peer.String()
	if _, ok := r.direct[key]; ok {
		return true
	}
	_, ok := r.background[key]
	return ok
}

// registry is the process-wide table of registered clients, indexed
// by client id. Id 0 is never handed out.
type registry struct {
	regs [MaxClients + 1]*registrant
}

func (t *registry) add(c gattlink.Client) (*registrant, error) {
	for id := 1; id <= MaxClients; id++ {
		if t.regs[id] != nil {
			continue
		}
		r := &registrant{
			id:         gattlink.ClientID(id),
			client:     c,
			direct:     make(map[string]struct{}),
			background: make(map[string]struct{}),
		}
		t.regs[id] = r
		return r, nil
	}
	return nil, ErrRegistryFull
}

func (t *registry) remove(id gattlink.ClientID) {
	if int(id) < len(t.regs) {
		t.regs[id] = nil
	}
}

func (t *registry) get(id gattlink.ClientID) *registrant {
	if id == 0 || int(id) > MaxClients {
		return nil
	}
	return t.regs[id]
}

// forEach visits registrants in ascending id order so callback
// delivery is deterministic.
func (t *registry) forEach(f func(*registrant)) {
	for id := 1; id <= MaxClients; id++ {
		if t.regs[id] != nil {
			f(t.regs[id])
		}
	}
}
