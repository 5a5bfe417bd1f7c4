package announcer

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"usd/internal/service"
)

// registry maps service ids to entries. At most one entry exists per id.
type registry struct {
	entries sync.Map // string -> *entry
	seq     atomic.Uint64
}

// insert stores a new entry unless the id is taken. It returns the stored entry and whether it is new.
func (r *registry) insert(info service.Info, locality Locality) (*entry, bool) {
	e := &entry{info: info, locality: locality, seq: r.seq.Add(1)}
	actual, loaded := r.entries.LoadOrStore(info.ID, e)
	return actual.(*entry), !loaded
}

// remove deletes the entry for info.ID only if it matches info and locality.
func (r *registry) remove(info service.Info, locality Locality) bool {
	for {
		v, ok := r.entries.Load(info.ID)
		if !ok {
			return false
		}
		e := v.(*entry)
		if !e.matches(info, locality) {
			return false
		}
		if r.entries.CompareAndDelete(info.ID, e) {
			return true
		}
	}
}

// snapshot returns the entries in insertion order
func (r *registry) snapshot() []*entry {
	var entries []*entry
	r.entries.Range(func(_, v any) bool {
		entries = append(entries, v.(*entry))
		return true
	})
	slices.SortFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return entries
}

func (r *registry) services(filter func(*entry) bool) []service.Info {
	var infos []service.Info
	for _, e := range r.snapshot() {
		if filter == nil || filter(e) {
			infos = append(infos, e.clone())
		}
	}
	return infos
}

func (r *registry) locals() []service.Info {
	return r.services(func(e *entry) bool {
		return e.locality == Local
	})
}
