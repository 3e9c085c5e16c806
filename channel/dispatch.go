package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// Dispatcher is the attribute-protocol codec this core feeds. It owns
// the outbound command queue referenced by congestion relay; the
// manager only tells it when to drain.
type Dispatcher interface {
	// HandlePDU delivers one inbound protocol data unit that arrived
	// on an open channel.
	HandlePDU(peer gattlink.Addr, cid uint16, opcode byte, payload []byte)

	// ResumePending releases queued outbound commands for the peer.
	// Called before any client learns the channel is uncongested.
	ResumePending(peer gattlink.Addr)

	// Indicate sends a handle-value indication to the peer. Used for
	// the service-changed value.
	Indicate(peer gattlink.Addr, value []byte) error
}

// BondedStore is the device/bonding storage collaborator. The
// service-change tracker derives its peer list from it and consults
// stored names for the interoperability suppression list.
type BondedStore interface {
	IsBonded(peer gattlink.Addr) bool
	StoredName(peer gattlink.Addr) (string, bool)

	// ServiceChangeClients returns the addresses of bonded peers that
	// are tracked for service-changed indications.
	ServiceChangeClients() ([]string, error)

	// AddServiceChangeClient persists a peer into the tracked list.
	AddServiceChangeClient(addr string) error
}
