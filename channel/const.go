package channel

const (
	// MaxSessions caps the table at the platform maximum of concurrent
	// physical links.
	MaxSessions = 7

	// MaxClients caps the number of registered upper-layer clients.
	MaxClients = 32

	// FixedCID is the well-known attribute protocol channel on an LE
	// link. Dynamic channels always allocate above the fixed range.
	FixedCID uint16 = 0x0004

	// AttPSM is the classic-transport PSM the dynamic channel is
	// requested on.
	AttPSM uint16 = 0x001f

	// DefaultLEPayload is the payload size of a freshly opened fixed
	// channel before the upper layer renegotiates it.
	DefaultLEPayload uint16 = 23

	// DefaultDynamicPayload is the default payload size for a dynamic
	// channel when the peer offers nothing smaller.
	DefaultDynamicPayload uint16 = 672
)

// ResultOK is the lower layer's success code for connect and
// configure confirms.
const ResultOK uint16 = 0

type state uint8

const (
	stateClosed state = iota
	stateConnecting
	stateConfiguring
	stateOpen
	stateClosing
)

func (s state) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateConnecting:
		return "connecting"
	case stateConfiguring:
		return "configuring"
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	default:
		return "invalid"
	}
}
