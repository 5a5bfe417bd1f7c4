// Package memory is an in-process transport. Every receiver joined to a group gets a copy
// of every packet sent to it, including packets sent by its own process.
package memory

import (
	"fmt"
	"net"
	"sync"
	"time"

	"usd/internal/transport"
)

// queueSize bounds the packets buffered per receiver, overflow is dropped like on a real socket
const queueSize = 1 << 14

// Addr identifies the sending side of a packet
type Addr string

func (a Addr) Network() string { return "memory" }
func (a Addr) String() string  { return string(a) }

type Hub struct {
	mu      sync.Mutex
	groups  map[string]map[*receiver]struct{}
	dialErr error
	senders int
	sent    int
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*receiver]struct{})}
}

func (h *Hub) Listen(group *net.UDPAddr) (transport.Receiver, error) {
	r := &receiver{
		hub:     h,
		group:   group.String(),
		packets: make(chan packet, queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[r.group] == nil {
		h.groups[r.group] = make(map[*receiver]struct{})
	}
	h.groups[r.group][r] = struct{}{}
	return r, nil
}

func (h *Hub) Dial(group *net.UDPAddr) (transport.Sender, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dialErr != nil {
		return nil, h.dialErr
	}
	h.senders++
	return &sender{hub: h, group: group.String(), addr: Addr(fmt.Sprintf("sender-%d", h.senders))}, nil
}

// FailDial makes every following Dial return err, nil restores it
func (h *Hub) FailDial(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialErr = err
}

// Break makes every receiver currently joined to group fail its next read with err
func (h *Hub) Break(group *net.UDPAddr, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for r := range h.groups[group.String()] {
		r.fail(err)
	}
}

// Members returns the number of open receivers joined to group
func (h *Hub) Members(group *net.UDPAddr) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group.String()])
}

// Sent returns the number of packets written through the hub
func (h *Hub) Sent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent
}

func (h *Hub) deliver(group string, p packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent++
	for r := range h.groups[group] {
		select {
		case r.packets <- p:
		default:
		}
	}
}

func (h *Hub) leave(r *receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups[r.group], r)
}

type packet struct {
	data []byte
	from Addr
}

type receiver struct {
	hub     *Hub
	group   string
	packets chan packet
	done    chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (r *receiver) ReadPacket(buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := r.failure(); err != nil {
		return 0, nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-r.packets:
		return copy(buf, p.data), p.from, nil
	case <-r.done:
		if err := r.failure(); err != nil {
			return 0, nil, err
		}
		return 0, nil, transport.ErrClosed
	case <-timer.C:
		return 0, nil, transport.ErrTimeout
	}
}

func (r *receiver) Close() error {
	r.once.Do(func() {
		r.hub.leave(r)
		close(r.done)
	})
	return nil
}

func (r *receiver) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *receiver) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

type sender struct {
	hub    *Hub
	group  string
	addr   Addr
	closed bool
}

func (s *sender) WritePacket(b []byte) error {
	if s.closed {
		return transport.ErrClosed
	}
	s.hub.deliver(s.group, packet{data: append([]byte(nil), b...), from: s.addr})
	return nil
}

func (s *sender) Close() error {
	s.closed = true
	return nil
}
