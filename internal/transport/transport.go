// Package transport is the seam between the announcer and the network.
package transport

import (
	"errors"
	"net"
	"time"
)

var (
	// ErrTimeout is returned by ReadPacket when nothing arrived within the poll timeout
	ErrTimeout = errors.New("read timeout")
	ErrClosed  = errors.New("transport closed")
)

// Receiver is a socket joined to a multicast group
type Receiver interface {
	// ReadPacket blocks for at most timeout. Any error other than ErrTimeout is fatal.
	ReadPacket(buf []byte, timeout time.Duration) (int, net.Addr, error)
	Close() error
}

// Sender writes datagrams to one group
type Sender interface {
	WritePacket(b []byte) error
	Close() error
}

type Transport interface {
	// Listen joins the group and returns a long lived receiver
	Listen(group *net.UDPAddr) (Receiver, error)
	// Dial opens a transient sender, the caller closes it after one batch
	Dial(group *net.UDPAddr) (Sender, error)
}
