package announcer

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultGroup = "239.255.77.77"
	DefaultPort  = 7777

	defaultPollTimeout     = 150 * time.Millisecond
	defaultSendDelay       = 150 * time.Microsecond
	defaultShutdownTimeout = 5 * time.Second
	defaultReadBuffer      = 32 * 1024

	// MaxDatagram is the largest UDP payload over IPv4
	MaxDatagram = 65507
)

type Config struct {
	Group     string `yaml:"group" env:"USD_GROUP" env-default:"239.255.77.77"`
	Port      int    `yaml:"port" env:"USD_PORT" env-default:"7777"`
	Interface string `yaml:"interface" env:"USD_INTERFACE"`
	TTL       int    `yaml:"ttl" env:"USD_TTL" env-default:"1"`
	// DisableLoopback stops this host's own sockets from receiving what it sends
	DisableLoopback bool `yaml:"disable_loopback" env:"USD_DISABLE_LOOPBACK"`

	// PollTimeout bounds a single receive, it is how fast the receiver notices Stop
	PollTimeout time.Duration `yaml:"poll_timeout" env:"USD_POLL_TIMEOUT" env-default:"150ms"`
	// SendDelay separates consecutive packets of one batch
	SendDelay       time.Duration `yaml:"send_delay" env:"USD_SEND_DELAY" env-default:"150us"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"USD_SHUTDOWN_TIMEOUT" env-default:"5s"`
	ReadBuffer      int           `yaml:"read_buffer" env:"USD_READ_BUFFER" env-default:"32768"`
}

func DefaultConfig() Config {
	return Config{
		Group:           DefaultGroup,
		Port:            DefaultPort,
		TTL:             1,
		PollTimeout:     defaultPollTimeout,
		SendDelay:       defaultSendDelay,
		ShutdownTimeout: defaultShutdownTimeout,
		ReadBuffer:      defaultReadBuffer,
	}
}

// GroupAddr resolves the configured group and port
func (c Config) GroupAddr() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.Group, strconv.Itoa(c.Port)))
	if err != nil {
		return nil, fmt.Errorf("resolve group %s:%d: %w", c.Group, c.Port, err)
	}
	if !addr.IP.IsMulticast() {
		return nil, fmt.Errorf("group %s is not a multicast address", c.Group)
	}
	return addr, nil
}

// withDefaults fills unset addresses and timings. A zero TTL leaves the system default.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.SendDelay < 0 {
		c.SendDelay = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = d.ReadBuffer
	}
	return c
}

// maxPacket is the largest announcement a peer reading with this config receives whole
func (c Config) maxPacket() int {
	return min(c.ReadBuffer, MaxDatagram)
}
