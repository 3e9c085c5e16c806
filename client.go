package gattlink

// ConnectionEvent reports a logical connection opening or closing to
// one registered client.
type ConnectionEvent struct {
	Client    ClientID
	Peer      Addr
	Conn      ConnID
	Connected bool
	Reason    ConnReason
	Transport Transport
}

// Client receives connection lifecycle events. Implementations must
// not call back into the channel manager from inside a handler; hand
// the event off to another goroutine instead.
type Client interface {
	HandleConnection(ConnectionEvent)
}

// CongestionHandler is implemented by clients that want transport
// congestion notifications.
type CongestionHandler interface {
	HandleCongestion(conn ConnID, congested bool)
}

// PHYUpdateEvent reports a PHY change on the underlying LE link.
type PHYUpdateEvent struct {
	Client ClientID
	Conn   ConnID
	TxPHY  uint8
	RxPHY  uint8
	Status uint8
}

type PHYUpdateHandler interface {
	HandlePHYUpdate(PHYUpdateEvent)
}

// ConnParamsEvent reports updated link connection parameters.
type ConnParamsEvent struct {
	Client   ClientID
	Conn     ConnID
	Interval uint16
	Latency  uint16
	Timeout  uint16
	Status   uint8
}

type ConnParamsHandler interface {
	HandleConnParams(ConnParamsEvent)
}

// SubrateEvent reports a subrate change on the underlying LE link.
type SubrateEvent struct {
	Client             ClientID
	Conn               ConnID
	Factor             uint16
	Latency            uint16
	ContinuationNumber uint16
	Timeout            uint16
	Status             uint8
}

type SubrateHandler interface {
	HandleSubrateChange(SubrateEvent)
}
