package gattlink

import "fmt"

// Transport selects the link layer a channel runs on.
type Transport uint8

const (
	// TransportLE is the low energy link. ATT rides the always-present
	// fixed channel; no connect/configure handshake exists.
	TransportLE Transport = iota + 1

	// TransportBREDR is the classic link. ATT uses a dynamic channel
	// negotiated with a connect and configure exchange.
	TransportBREDR
)

func (t Transport) String() string {
	switch t {
	case TransportLE:
		return "LE"
	case TransportBREDR:
		return "BR/EDR"
	default:
		return fmt.Sprintf("Transport(%d)", uint8(t))
	}
}

// ClientID identifies a registered upper-layer client.
type ClientID uint8

// ConnID is the logical connection identifier handed to clients. One
// physical link serves many clients, so the id encodes both the
// session slot and the client.
type ConnID uint16

func MakeConnID(slot uint8, client ClientID) ConnID {
	return ConnID(uint16(slot)<<8 | uint16(client))
}

func (c ConnID) Slot() uint8 {
	return uint8(c >> 8)
}

func (c ConnID) Client() ClientID {
	return ClientID(c & 0xff)
}

// ConnReason is the reason code delivered with connection-closed (and
// failed connection-opened) events. Values below 0xff match the link
// layer's disconnect reasons and are propagated verbatim.
type ConnReason uint16

const (
	ReasonOK             ConnReason = 0x00
	ReasonChannelFailure ConnReason = 0x01
	ReasonTimeout        ConnReason = 0x08
	ReasonPeerTerminated ConnReason = 0x13
	ReasonLocalHost      ConnReason = 0x16

	// ReasonUnknown is the historical catch-all some hosts reported
	// for connection timeouts before reasons were enumerated.
	ReasonUnknown ConnReason = 0xff
)

func (r ConnReason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonChannelFailure:
		return "channel failure"
	case ReasonTimeout:
		return "timeout"
	case ReasonPeerTerminated:
		return "terminated by peer"
	case ReasonLocalHost:
		return "terminated by local host"
	case ReasonUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ConnReason(0x%02x)", uint16(r))
	}
}
