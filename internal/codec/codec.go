// Package codec implements the announcement wire format, a small subset of CBOR (RFC 7049):
// unsigned integers, UTF-8 text strings, text-to-text maps and a leading self-describe tag.
//
//	TAG(55799) UINT(code) [ TEXT(id) TEXT(name) TEXT(endpoint) MAP(properties) ]
//
// The descriptor block is present iff the two low bits of the code are not zero.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"slices"
	"unicode/utf8"

	"usd/internal/message"
	"usd/internal/service"
)

// Major is the CBOR major type stored in the top three bits of a lead byte
type Major byte

const (
	MajorUnsigned Major = 0
	MajorText     Major = 3
	MajorMap      Major = 5
	MajorTag      Major = 6
)

const (
	oneByte    = 0x18
	twoBytes   = 0x19
	fourBytes  = 0x1a
	eightBytes = 0x1b

	infoMask = 0x1f
)

const (
	// Magic is the self-describe CBOR tag every packet starts with
	Magic = 55799

	// MaxLength bounds text lengths and map sizes, on both sides of the wire
	MaxLength = math.MaxInt16
)

// AppendUint appends v with the given major type using the shortest encoding.
func AppendUint(dst []byte, major Major, v uint64) []byte {
	mt := byte(major) << 5
	switch {
	case v < oneByte:
		return append(dst, mt|byte(v))
	case v <= math.MaxUint8:
		return append(dst, mt|oneByte, byte(v))
	case v <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(dst, mt|twoBytes), uint16(v))
	case v <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(dst, mt|fourBytes), uint32(v))
	default:
		return binary.BigEndian.AppendUint64(append(dst, mt|eightBytes), v)
	}
}

// AppendString appends s as a text string. The length is the UTF-8 byte length.
func AppendString(dst []byte, s string) ([]byte, error) {
	if len(s) > MaxLength {
		return dst, fmt.Errorf("%w: text of %d bytes", ErrTooLarge, len(s))
	}
	if !utf8.ValidString(s) {
		return dst, ErrInvalidText
	}
	dst = AppendUint(dst, MajorText, uint64(len(s)))
	return append(dst, s...), nil
}

// AppendMap appends m as a map of text pairs, keys in ascending order.
func AppendMap(dst []byte, m map[string]string) ([]byte, error) {
	if len(m) > MaxLength {
		return dst, fmt.Errorf("%w: map of %d entries", ErrTooLarge, len(m))
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	dst = AppendUint(dst, MajorMap, uint64(len(m)))
	var err error
	for _, k := range keys {
		if dst, err = AppendString(dst, k); err != nil {
			return dst, err
		}
		if dst, err = AppendString(dst, m[k]); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// Marshal encodes an announcement
func Marshal(m message.Message) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = AppendUint(buf, MajorTag, Magic)
	buf = AppendUint(buf, MajorUnsigned, uint64(m.Code()))

	info, ok := m.Service()
	if !ok {
		return buf, nil
	}

	var err error
	for _, s := range []string{info.ID, info.Name, info.Endpoint} {
		if buf, err = AppendString(buf, s); err != nil {
			return nil, fmt.Errorf("encode %s: %w", m, err)
		}
	}
	if buf, err = AppendMap(buf, info.Properties); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m, err)
	}
	return buf, nil
}

// Unmarshal decodes an announcement. Bytes after a complete message are ignored.
// Every error wraps ErrMalformed.
func Unmarshal(data []byte) (message.Message, error) {
	d := NewDecoder(data)

	magic, err := d.Uint(MajorTag)
	if err != nil {
		return message.Message{}, err
	}
	if magic != Magic {
		return message.Message{}, d.fail(ErrBadMagic, "tag %d", magic)
	}

	raw, err := d.Uint(MajorUnsigned)
	if err != nil {
		return message.Message{}, err
	}
	if raw > math.MaxUint32 {
		return message.Message{}, d.fail(ErrInvalidInteger, "code %d", raw)
	}

	m := message.New(message.Code(raw), nil)
	if !m.HasService() {
		return m, nil
	}

	var fields [3]string
	for i := range fields {
		if fields[i], err = d.String(); err != nil {
			return message.Message{}, err
		}
	}
	if _, err := url.Parse(fields[2]); err != nil {
		return message.Message{}, d.fail(ErrInvalidText, "endpoint: %v", err)
	}
	props, err := d.Map()
	if err != nil {
		return message.Message{}, err
	}

	info := service.Info{ID: fields[0], Name: fields[1], Endpoint: fields[2], Properties: props}
	return message.New(m.Code(), &info), nil
}
