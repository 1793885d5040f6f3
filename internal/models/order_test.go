package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPackagingStatusValid(t *testing.T) {
	for _, s := range []PackagingStatus{
		PackagingNone, PackagingInProgress, PackagingPaused,
		PackagingBlockedFaltante, PackagingBlockedNovedad,
		PackagingCompleted, PackagingRequiresReview,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, PackagingStatus("verifying").Valid())
}

func TestPackagingStatusIsReleaseStatus(t *testing.T) {
	assert.True(t, PackagingPaused.IsReleaseStatus())
	assert.True(t, PackagingBlockedFaltante.IsReleaseStatus())
	assert.True(t, PackagingBlockedNovedad.IsReleaseStatus())

	// completed and requires_review are set by the system, never by a
	// voluntary handoff
	assert.False(t, PackagingCompleted.IsReleaseStatus())
	assert.False(t, PackagingRequiresReview.IsReleaseStatus())
	assert.False(t, PackagingInProgress.IsReleaseStatus())
	assert.False(t, PackagingNone.IsReleaseStatus())
}

func TestOrderHasLock(t *testing.T) {
	var order Order
	assert.False(t, order.HasLock())

	empty := ""
	order.PackingHolder = &empty
	assert.False(t, order.HasLock())

	holder := "maria"
	order.PackingHolder = &holder
	assert.True(t, order.HasLock())
}

func TestOrderLockExpired(t *testing.T) {
	now := time.Now()
	var order Order
	assert.False(t, order.LockExpired(now), "no lease recorded")

	past := now.Add(-time.Minute)
	order.PackingExpiresAt = &past
	assert.True(t, order.LockExpired(now))

	future := now.Add(time.Minute)
	order.PackingExpiresAt = &future
	assert.False(t, order.LockExpired(now))
}

func TestGenerateOrderNumber(t *testing.T) {
	prefix := "PED" + time.Now().Format("20060102") + "-"

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n := generateOrderNumber("PED")
		assert.True(t, strings.HasPrefix(n, prefix), n)
		assert.Len(t, n, len(prefix)+8)
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}

func TestOrderItemScannedCount(t *testing.T) {
	item := OrderItem{}
	assert.Zero(t, item.ScannedCount())

	item.Verification = &ItemVerification{ScannedCount: 2.5}
	assert.Equal(t, 2.5, item.ScannedCount())
}
