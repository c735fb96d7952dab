package spatiodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsertOptions_Resolve(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no ttl or expiry and no default returns zero value", func(t *testing.T) {
		got := InsertOptions{}.resolve(now, 0)
		assert.True(t, got.IsZero())
	})

	t.Run("relative TTL wins over no default", func(t *testing.T) {
		got := InsertOptions{TTL: time.Hour}.resolve(now, 0)
		assert.Equal(t, now.Add(time.Hour), got)
	})

	t.Run("absolute ExpiresAt takes precedence over TTL", func(t *testing.T) {
		abs := now.Add(24 * time.Hour)
		got := InsertOptions{TTL: time.Hour, ExpiresAt: abs}.resolve(now, 0)
		assert.Equal(t, abs, got)
	})

	t.Run("engine default applies when opts set nothing", func(t *testing.T) {
		got := InsertOptions{}.resolve(now, 30*time.Minute)
		assert.Equal(t, now.Add(30*time.Minute), got)
	})

	t.Run("explicit TTL overrides engine default", func(t *testing.T) {
		got := InsertOptions{TTL: 5 * time.Minute}.resolve(now, 30*time.Minute)
		assert.Equal(t, now.Add(5*time.Minute), got)
	})
}
