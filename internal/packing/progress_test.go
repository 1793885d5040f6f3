package packing

import (
	"testing"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	holder := "maria"
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:              7,
		OrderNumber:     "PED20260314-TEST",
		Status:          models.OrderStatusPacking,
		PackagingStatus: models.PackagingInProgress,
		PackingHolder:   &holder,
	}

	verified := testItem(1, nil, "SKU-A", "Arroz Diana 500g", 2, 2)
	pending := testItem(2, nil, "SKU-B", "Aceite Premier 1L", 1, 0)
	partial := testItem(3, nil, "SKU-C", "Panela x4", 3, 1)
	replaced := testItem(4, nil, "SKU-D", "Descontinuado", 1, 1)
	replaced.Status = models.OrderItemReplaced

	p := ComputeProgress(order, []models.OrderItem{verified, pending, partial, replaced}, now)

	assert.Equal(t, uint(7), p.OrderID)
	assert.Equal(t, 3, p.TotalItems, "replaced items do not count")
	assert.Equal(t, 1, p.VerifiedItems)
	assert.Equal(t, 2, p.PendingItems)
	assert.InDelta(t, 33.33, p.ProgressPct, 0.01)
	assert.Equal(t, "maria", *p.PackingHolder)
	assert.Equal(t, now, p.Timestamp)
}

func TestComputeProgressEmptyOrder(t *testing.T) {
	order := &models.Order{ID: 1, OrderNumber: "PED-EMPTY"}

	p := ComputeProgress(order, nil, time.Now())

	assert.Zero(t, p.TotalItems)
	assert.Zero(t, p.PendingItems)
	assert.Zero(t, p.ProgressPct)
}

func TestComputeProgressAllVerified(t *testing.T) {
	order := &models.Order{ID: 2}
	items := []models.OrderItem{
		testItem(1, nil, "SKU-A", "Arroz Diana 500g", 1, 1),
		testItem(2, nil, "SKU-B", "Aceite Premier 1L", 2, 2),
	}

	p := ComputeProgress(order, items, time.Now())

	assert.Equal(t, 2, p.VerifiedItems)
	assert.Zero(t, p.PendingItems)
	assert.Equal(t, 100.0, p.ProgressPct)
}
