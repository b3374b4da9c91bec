// ABOUTME: Tests for the bounded confirmed-preview-id set
// ABOUTME: Validates membership, capacity eviction and re-add refresh

package preview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmedSet_AddContains(t *testing.T) {
	s := NewConfirmedSet(10)

	assert.False(t, s.Contains("p1"))
	assert.True(t, s.Add("p1"))
	assert.True(t, s.Contains("p1"))
}

func TestConfirmedSet_AddTwice(t *testing.T) {
	s := NewConfirmedSet(10)

	assert.True(t, s.Add("p1"))
	assert.False(t, s.Add("p1"), "second add is not a new insertion")
	assert.Equal(t, 1, s.Len())
}

func TestConfirmedSet_EvictsOldest(t *testing.T) {
	s := NewConfirmedSet(3)

	s.Add("p1")
	s.Add("p2")
	s.Add("p3")
	s.Add("p4")

	assert.False(t, s.Contains("p1"), "oldest id should be evicted")
	assert.True(t, s.Contains("p2"))
	assert.True(t, s.Contains("p3"))
	assert.True(t, s.Contains("p4"))
	assert.Equal(t, 3, s.Len())
}

func TestConfirmedSet_ReAddRefreshesOrder(t *testing.T) {
	s := NewConfirmedSet(3)

	s.Add("p1")
	s.Add("p2")
	s.Add("p3")
	s.Add("p1") // p1 moves to the back
	s.Add("p4") // evicts p2, now the oldest

	assert.True(t, s.Contains("p1"))
	assert.False(t, s.Contains("p2"))
	assert.True(t, s.Contains("p3"))
	assert.True(t, s.Contains("p4"))
}

func TestConfirmedSet_DefaultCapacity(t *testing.T) {
	s := NewConfirmedSet(0)

	for i := 0; i < DefaultCapacity+5; i++ {
		s.Add(fmt.Sprintf("p%d", i))
	}
	assert.Equal(t, DefaultCapacity, s.Len())
}
