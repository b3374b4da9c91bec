// ABOUTME: Tests for the agent directory cache
// ABOUTME: Validates TTL expiry boundaries and overwrite-with-fresh-timestamp

package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorhq/parlor-go/internal/api"
)

func TestCache_GetMiss(t *testing.T) {
	c := New(DefaultTTL)

	_, ok := c.Get("nobody")
	assert.False(t, ok)
}

func TestCache_SetThenGet(t *testing.T) {
	c := New(DefaultTTL)
	agent := api.Agent{ID: "a1", Handle: "avee", DisplayName: "Avee"}

	c.Set("avee", agent)

	got, ok := c.Get("avee")
	require.True(t, ok)
	assert.Equal(t, agent, got)
}

func TestCache_TTLBoundary(t *testing.T) {
	c := New(DefaultTTL)

	base := time.Now()
	clock := base
	c.now = func() time.Time { return clock }

	c.Set("avee", api.Agent{ID: "a1", Handle: "avee"})

	// Just inside the TTL.
	clock = base.Add(4*time.Minute + 59*time.Second)
	_, ok := c.Get("avee")
	assert.True(t, ok, "entry should survive at 4:59")

	// Just past the TTL.
	clock = base.Add(5*time.Minute + 1*time.Second)
	_, ok = c.Get("avee")
	assert.False(t, ok, "entry should be absent at 5:01")
}

func TestCache_SetRefreshesExpired(t *testing.T) {
	c := New(DefaultTTL)

	base := time.Now()
	clock := base
	c.now = func() time.Time { return clock }

	c.Set("avee", api.Agent{ID: "a1", Handle: "avee"})
	clock = base.Add(6 * time.Minute)

	_, ok := c.Get("avee")
	require.False(t, ok)

	// A fresh Set makes the entry visible again.
	c.Set("avee", api.Agent{ID: "a1", Handle: "avee"})
	_, ok = c.Get("avee")
	assert.True(t, ok)
}

func TestCache_Overwrite(t *testing.T) {
	c := New(DefaultTTL)

	c.Set("avee", api.Agent{ID: "a1", Handle: "avee", DisplayName: "Old"})
	c.Set("avee", api.Agent{ID: "a1", Handle: "avee", DisplayName: "New"})

	got, ok := c.Get("avee")
	require.True(t, ok)
	assert.Equal(t, "New", got.DisplayName)
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
