package announcer

import (
	"slices"
	"sync"
	"sync/atomic"

	"usd/internal/service"
)

// registration is one listener added to the set. A notification queued before the
// listener was removed checks removed before calling it.
type registration struct {
	listener service.Listener
	removed  atomic.Bool
}

// listenerSet is copy-on-write: readers take the current slice and never see it change.
type listenerSet struct {
	mu   sync.Mutex
	regs atomic.Pointer[[]*registration]
}

func (s *listenerSet) snapshot() []*registration {
	if p := s.regs.Load(); p != nil {
		return *p
	}
	return nil
}

// add appends l unless it is already registered
func (s *listenerSet) add(l service.Listener) (*registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshot()
	for _, r := range current {
		if r.listener == l {
			return r, false
		}
	}

	reg := &registration{listener: l}
	next := append(slices.Clip(current), reg)
	s.regs.Store(&next)
	return reg, true
}

func (s *listenerSet) remove(l service.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshot()
	i := slices.IndexFunc(current, func(r *registration) bool {
		return r.listener == l
	})
	if i < 0 {
		return false
	}

	current[i].removed.Store(true)
	next := slices.Delete(slices.Clone(current), i, i+1)
	s.regs.Store(&next)
	return true
}
