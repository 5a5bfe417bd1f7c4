package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"usd/internal/service"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name         string
		code         Code
		stateRequest bool
		added        bool
		removed      bool
	}{
		{name: "State request", code: StateRequest, stateRequest: true},
		{name: "Added", code: Added, added: true, removed: true},
		{name: "Removed", code: Removed, removed: true},
		{name: "Unknown intent", code: 0x01},
		{name: "High bits ignored", code: 0x04, stateRequest: true},
		{name: "High bits with added", code: 0x07, added: true, removed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.code, nil)
			assert.Equal(t, tt.stateRequest, m.IsStateRequest())
			assert.Equal(t, tt.added, m.IsAdded())
			assert.Equal(t, tt.removed, m.IsRemoved())
		})
	}
}

func TestConstructors(t *testing.T) {
	info := service.New("id1", "Service1", "http://localhost:8080/serv1", nil)

	req := NewStateRequest()
	assert.Equal(t, StateRequest, req.Code())
	assert.False(t, req.HasService())
	_, ok := req.Service()
	assert.False(t, ok)

	added := NewAdded(info)
	assert.Equal(t, Added, added.Code())
	assert.True(t, added.HasService())
	got, ok := added.Service()
	assert.True(t, ok)
	assert.True(t, info.Equal(got))

	removed := NewRemoved(info)
	assert.Equal(t, Removed, removed.Code())
	assert.True(t, removed.IsRemoved())
	assert.False(t, removed.IsAdded())
}

func TestEqual(t *testing.T) {
	a := service.New("id1", "Service1", "http://localhost:8080/serv1", map[string]string{"k": "v"})
	b := service.New("id1", "Service1", "http://localhost:8080/serv1", map[string]string{"k": "v"})
	c := service.New("id2", "Service2", "http://localhost:8080/serv2", nil)

	assert.True(t, NewAdded(a).Equal(NewAdded(b)))
	assert.False(t, NewAdded(a).Equal(NewRemoved(a)))
	assert.False(t, NewAdded(a).Equal(NewAdded(c)))
	assert.True(t, NewStateRequest().Equal(NewStateRequest()))
	assert.False(t, NewStateRequest().Equal(New(StateRequest, &a)))
}

func TestMessageDoesNotAliasDescriptor(t *testing.T) {
	info := service.New("id1", "Service1", "http://h/", nil)
	m := NewAdded(info)
	info.Name = "changed"

	got, _ := m.Service()
	assert.Equal(t, "Service1", got.Name)
}
