package announcer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerSet(t *testing.T) {
	s := &listenerSet{}
	a, b := &recorder{}, &recorder{}

	regA, added := s.add(a)
	require.True(t, added)
	_, added = s.add(a)
	assert.False(t, added)
	regB, _ := s.add(b)

	before := s.snapshot()
	require.Len(t, before, 2)

	assert.True(t, s.remove(a))
	assert.False(t, s.remove(a))

	// earlier snapshots are not modified
	assert.Len(t, before, 2)
	assert.Same(t, regA, before[0])
	assert.True(t, regA.removed.Load())
	assert.False(t, regB.removed.Load())

	after := s.snapshot()
	require.Len(t, after, 1)
	assert.Same(t, regB, after[0])

	// a listener added again gets a fresh registration
	regA2, added := s.add(a)
	require.True(t, added)
	assert.NotSame(t, regA, regA2)
	assert.False(t, regA2.removed.Load())
}
