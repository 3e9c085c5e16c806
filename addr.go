package gattlink

import (
	"encoding/hex"
	"strings"
)

// Addr identifies a peer device. On most platforms this is the public
// or random MAC address of the remote controller.
type Addr interface {
	String() string
	Bytes() []byte
}

// NewAddr creates an Addr from a string. The value is normalized to
// lower case so it can be used as a table key.
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

type addr string

func (a addr) String() string {
	return string(a)
}

func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil
	}

	return out
}
