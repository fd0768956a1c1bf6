package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBadge_ValidAt(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	t.Run("active without expiry", func(t *testing.T) {
		badge := Badge{Active: true}
		assert.True(t, badge.ValidAt(now))
	})

	t.Run("expiry in the future", func(t *testing.T) {
		badge := Badge{Active: true, ExpiresAt: &future}
		assert.True(t, badge.ValidAt(now))
	})

	t.Run("expiry equal to now is already invalid", func(t *testing.T) {
		badge := Badge{Active: true, ExpiresAt: &now}
		assert.False(t, badge.ValidAt(now))
	})

	t.Run("expiry in the past", func(t *testing.T) {
		badge := Badge{Active: true, ExpiresAt: &past}
		assert.False(t, badge.ValidAt(now))
	})

	t.Run("revoked beats everything", func(t *testing.T) {
		badge := Badge{Active: true, Revoked: true, ExpiresAt: &future}
		assert.False(t, badge.ValidAt(now))
	})

	t.Run("inactive is invalid", func(t *testing.T) {
		badge := Badge{Active: false}
		assert.False(t, badge.ValidAt(now))
	})
}
