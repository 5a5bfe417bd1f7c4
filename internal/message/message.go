// Package message defines the announcements exchanged on the multicast group.
package message

import (
	"fmt"

	"usd/internal/service"
)

// Code selects the intent of an announcement. Only the two low bits are meaningful.
type Code uint32

const (
	StateRequest Code = 0x00
	Removed      Code = 0x02
	Added        Code = 0x03

	intentMask Code = 0x03
)

// Message is one announcement. It is immutable once built.
type Message struct {
	code Code
	info *service.Info
}

// New builds a message with an arbitrary code, used when decoding.
func New(code Code, info *service.Info) Message {
	return Message{code: code, info: info}
}

// NewStateRequest asks every peer to re-announce its local services
func NewStateRequest() Message {
	return Message{code: StateRequest}
}

func NewAdded(info service.Info) Message {
	return Message{code: Added, info: &info}
}

func NewRemoved(info service.Info) Message {
	return Message{code: Removed, info: &info}
}

func (m Message) Code() Code {
	return m.code
}

// Service returns the attached descriptor, if any.
func (m Message) Service() (service.Info, bool) {
	if m.info == nil {
		return service.Info{}, false
	}
	return *m.info, true
}

// HasService reports whether the wire form carries a descriptor block.
func (m Message) HasService() bool {
	return m.code&intentMask != 0
}

func (m Message) IsStateRequest() bool {
	return m.code&intentMask == StateRequest
}

func (m Message) IsAdded() bool {
	return m.code&intentMask == Added
}

// IsRemoved tests only the removed bit, so it also holds for Added.
// Dispatchers must check IsAdded first.
func (m Message) IsRemoved() bool {
	return m.code&Removed == Removed
}

func (m Message) Equal(other Message) bool {
	if m.code != other.code {
		return false
	}
	if m.info == nil || other.info == nil {
		return m.info == nil && other.info == nil
	}
	return m.info.Equal(*other.info)
}

func (m Message) String() string {
	var intent string
	switch {
	case m.IsStateRequest():
		intent = "state-request"
	case m.IsAdded():
		intent = "added"
	case m.IsRemoved():
		intent = "removed"
	default:
		intent = fmt.Sprintf("code(%d)", m.code)
	}
	if m.info == nil {
		return intent
	}
	return intent + " " + m.info.String()
}
