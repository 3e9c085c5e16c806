package channel

import (
	gattlink "github.com/veloxbt/gattlink"
)

// Link is the lower-layer connection service the manager drives. All
// requests are fire-and-forget: results arrive later through the
// manager's event entry points, in any order relative to application
// calls.
type Link interface {
	// ConnectFixed asks the link layer to bring up the LE link
	// carrying the fixed channel. Completion is reported through
	// FixedChannelChanged, failure to even start through the error.
	ConnectFixed(peer gattlink.Addr) error

	// CancelConnect withdraws a pending connect attempt to the peer.
	// Best effort; false means there was nothing to cancel.
	CancelConnect(peer gattlink.Addr) bool

	// RemoveFixed tears the fixed channel (and with it the LE link)
	// down. The eventual FixedChannelChanged reports completion.
	RemoveFixed(peer gattlink.Addr) bool

	// ConnectDynamic starts a dynamic channel connect on the given
	// PSM and returns the local channel id, or 0 when the request
	// could not be sent.
	ConnectDynamic(peer gattlink.Addr, psm uint16) uint16

	// Disconnect requests teardown of a dynamic channel. Best effort.
	Disconnect(cid uint16) bool

	// LinkUp reports whether the radio link to the peer is currently
	// established and verified.
	LinkUp(peer gattlink.Addr, tr gattlink.Transport) bool
}
