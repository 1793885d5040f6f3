package packing

import (
	"testing"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestLockStatusOf(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("unlocked order", func(t *testing.T) {
		order := &models.Order{ID: 1, PackagingStatus: models.PackagingPaused}

		status := lockStatusOf(order, now)

		assert.Equal(t, uint(1), status.OrderID)
		assert.Empty(t, status.Holder)
		assert.False(t, status.IsExpired)
		assert.Equal(t, models.PackagingPaused, status.PackagingStatus)
	})

	t.Run("live lease", func(t *testing.T) {
		holder := "maria"
		expires := now.Add(10 * time.Minute)
		order := &models.Order{
			ID:               2,
			PackingHolder:    &holder,
			PackingExpiresAt: &expires,
			PackagingStatus:  models.PackagingInProgress,
		}

		status := lockStatusOf(order, now)

		assert.Equal(t, "maria", status.Holder)
		assert.False(t, status.IsExpired)
	})

	t.Run("lapsed lease is reported expired before the sweep runs", func(t *testing.T) {
		holder := "carlos"
		expires := now.Add(-time.Minute)
		order := &models.Order{
			ID:               3,
			PackingHolder:    &holder,
			PackingExpiresAt: &expires,
		}

		status := lockStatusOf(order, now)

		assert.Equal(t, "carlos", status.Holder)
		assert.True(t, status.IsExpired)
	})
}

func TestNewLockManagerDefaults(t *testing.T) {
	m := NewLockManager(nil, nil, 0)
	assert.Equal(t, 15*time.Minute, m.DefaultTTL())

	m = NewLockManager(nil, NopPublisher{}, 30*time.Minute)
	assert.Equal(t, 30*time.Minute, m.DefaultTTL())
}
