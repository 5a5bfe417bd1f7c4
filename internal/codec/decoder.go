package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Decoder reads primitives from a byte slice
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Uint reads one lead byte, checks its major type and returns the encoded value.
func (d *Decoder) Uint(major Major) (uint64, error) {
	start := d.off
	lead, err := d.next(1)
	if err != nil {
		return 0, err
	}
	if got := Major(lead[0] >> 5); got != major {
		d.off = start
		return 0, d.fail(ErrUnexpectedType, "want %d, got %d", major, got)
	}

	info := lead[0] & infoMask
	switch {
	case info < oneByte:
		return uint64(info), nil
	case info == oneByte:
		b, err := d.next(1)
		if err != nil {
			return 0, err
		}
		return uint64(b[0]), nil
	case info == twoBytes:
		b, err := d.next(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case info == fourBytes:
		b, err := d.next(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case info == eightBytes:
		b, err := d.next(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		d.off = start
		return 0, d.fail(ErrInvalidInteger, "additional info %d", info)
	}
}

// String reads a text string of at most MaxLength bytes
func (d *Decoder) String() (string, error) {
	n, err := d.Uint(MajorText)
	if err != nil {
		return "", err
	}
	if n > MaxLength {
		return "", d.fail(ErrTooLarge, "text of %d bytes", n)
	}
	b, err := d.next(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", d.fail(ErrInvalidText, "not UTF-8")
	}
	return string(b), nil
}

// Map reads a map of at most MaxLength text pairs. Later duplicates win.
func (d *Decoder) Map() (map[string]string, error) {
	n, err := d.Uint(MajorMap)
	if err != nil {
		return nil, err
	}
	if n > MaxLength {
		return nil, d.fail(ErrTooLarge, "map of %d entries", n)
	}

	// every entry needs at least two bytes, do not trust n for the allocation
	hint := min(int(n), d.remaining()/2)
	m := make(map[string]string, hint)
	for i := uint64(0); i < n; i++ {
		k, err := d.String()
		if err != nil {
			return nil, err
		}
		v, err := d.String()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

func (d *Decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) next(n int) ([]byte, error) {
	if n > d.remaining() {
		return nil, d.fail(ErrTruncated, "need %d bytes, have %d", n, d.remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w at offset %d: %s", ErrMalformed, kind, d.off, fmt.Sprintf(format, args...))
}
