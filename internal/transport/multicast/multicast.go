// Package multicast implements the transport over UDP multicast sockets.
package multicast

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"usd/internal/transport"
	"usd/internal/util/logger/sl"
)

type Options struct {
	// Interface name, empty lets the system choose
	Interface  string
	TTL        int
	Loopback   bool
	ReadBuffer int
}

type Transport struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) *Transport {
	return &Transport{
		opts: opts,
		log:  log.With(slog.String("transport", "multicast")),
	}
}

// Listen joins group on the configured interface
func (t *Transport) Listen(group *net.UDPAddr) (transport.Receiver, error) {
	op := "multicast.Listen"
	log := t.log.With(slog.String("op", op))

	if !group.IP.IsMulticast() {
		return nil, fmt.Errorf("%s: %s is not a multicast address", op, group.IP)
	}
	ifi, err := t.iface()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := net.ListenMulticastUDP(network(group), ifi, group)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t.opts.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(t.opts.ReadBuffer); err != nil {
			log.Warn("set read buffer", sl.Err(err))
		}
	}

	log.Debug("joined multicast group", slog.String("group", group.String()))
	return &receiver{conn: conn}, nil
}

// Dial opens an unbound socket with the multicast TTL, loopback and outgoing interface applied
func (t *Transport) Dial(group *net.UDPAddr) (transport.Sender, error) {
	op := "multicast.Dial"

	ifi, err := t.iface()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := net.ListenUDP(network(group), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := t.configure(conn, group, ifi); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sender{conn: conn, group: group}, nil
}

func (t *Transport) configure(conn *net.UDPConn, group *net.UDPAddr, ifi *net.Interface) error {
	if group.IP.To4() != nil {
		p := ipv4.NewPacketConn(conn)
		if t.opts.TTL > 0 {
			if err := p.SetMulticastTTL(t.opts.TTL); err != nil {
				return fmt.Errorf("set ttl: %w", err)
			}
		}
		if err := p.SetMulticastLoopback(t.opts.Loopback); err != nil {
			return fmt.Errorf("set loopback: %w", err)
		}
		if ifi != nil {
			if err := p.SetMulticastInterface(ifi); err != nil {
				return fmt.Errorf("set interface: %w", err)
			}
		}
		return nil
	}

	p := ipv6.NewPacketConn(conn)
	if t.opts.TTL > 0 {
		if err := p.SetMulticastHopLimit(t.opts.TTL); err != nil {
			return fmt.Errorf("set hop limit: %w", err)
		}
	}
	if err := p.SetMulticastLoopback(t.opts.Loopback); err != nil {
		return fmt.Errorf("set loopback: %w", err)
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("set interface: %w", err)
		}
	}
	return nil
}

func (t *Transport) iface() (*net.Interface, error) {
	if t.opts.Interface == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(t.opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", t.opts.Interface, err)
	}
	if ifi.Flags&net.FlagMulticast == 0 {
		return nil, fmt.Errorf("interface %q does not support multicast", t.opts.Interface)
	}
	return ifi, nil
}

func network(group *net.UDPAddr) string {
	if group.IP.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

type receiver struct {
	conn *net.UDPConn
	once sync.Once
	err  error
}

func (r *receiver) ReadPacket(buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, wrap(err)
	}
	n, addr, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, wrap(err)
	}
	return n, addr, nil
}

func (r *receiver) Close() error {
	r.once.Do(func() {
		r.err = r.conn.Close()
	})
	return r.err
}

type sender struct {
	conn  *net.UDPConn
	group *net.UDPAddr
}

func (s *sender) WritePacket(b []byte) error {
	_, err := s.conn.WriteToUDP(b, s.group)
	return wrap(err)
}

func (s *sender) Close() error {
	return s.conn.Close()
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return transport.ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", transport.ErrClosed, err)
	}
	return err
}
