// Package service describes the services announced and discovered on the multicast group.
package service

import (
	"fmt"
	"maps"
	"net/url"
)

// Info describes a single network service
type Info struct {
	ID         string            `yaml:"id" json:"id"`
	Name       string            `yaml:"name" json:"name"`
	Endpoint   string            `yaml:"endpoint" json:"endpoint"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// New creates a service descriptor. The property map is copied.
func New(id, name, endpoint string, props map[string]string) Info {
	return Info{
		ID:         id,
		Name:       name,
		Endpoint:   endpoint,
		Properties: maps.Clone(props),
	}
}

// Equal reports whether both descriptors carry the same id, name, endpoint and properties.
// A nil property map equals an empty one.
func (i Info) Equal(other Info) bool {
	return i.ID == other.ID &&
		i.Name == other.Name &&
		i.Endpoint == other.Endpoint &&
		maps.Equal(i.Properties, other.Properties)
}

// Same reports whether both descriptors denote the same service, that is the id and the name match.
func (i Info) Same(other Info) bool {
	return i.ID == other.ID && i.Name == other.Name
}

// Validate checks that the descriptor can be announced
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if _, err := url.Parse(i.Endpoint); err != nil {
		return fmt.Errorf("%w: endpoint %q: %v", ErrInvalid, i.Endpoint, err)
	}
	return nil
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) @ %s", i.Name, i.ID, i.Endpoint)
}
