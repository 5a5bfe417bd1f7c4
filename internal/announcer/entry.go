package announcer

import "usd/internal/service"

// Locality tells whether an entry was announced by this node or learned from the network
type Locality int

const (
	Local Locality = iota
	Remote
)

func (l Locality) String() string {
	switch l {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

type entry struct {
	info     service.Info
	locality Locality
	// seq orders entries by insertion
	seq uint64
}

// matches reports whether the entry was created from exactly this descriptor and direction
func (e *entry) matches(info service.Info, locality Locality) bool {
	return e.locality == locality && e.info.Equal(info)
}

// clone returns a descriptor that does not share the property map with the registry
func (e *entry) clone() service.Info {
	return service.New(e.info.ID, e.info.Name, e.info.Endpoint, e.info.Properties)
}
