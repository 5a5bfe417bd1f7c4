package service

import "errors"

var ErrInvalid = errors.New("invalid service")

// Listener is notified when services appear or disappear.
// Callbacks run on the announcer's worker and must not block,
// they delay every queued announcement and notification behind them.
// Listeners are compared with == on removal, use pointer implementations.
type Listener interface {
	ServiceAdded(info Info)
	ServiceRemoved(info Info)
}

// ListenerFuncs adapts plain functions to a Listener. Use it through a pointer.
type ListenerFuncs struct {
	Added   func(Info)
	Removed func(Info)
}

func (l *ListenerFuncs) ServiceAdded(info Info) {
	if l.Added != nil {
		l.Added(info)
	}
}

func (l *ListenerFuncs) ServiceRemoved(info Info) {
	if l.Removed != nil {
		l.Removed(info)
	}
}
