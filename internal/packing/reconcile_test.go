package packing

import (
	"testing"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(id uint, lineID *int64, code, name string, qty, scanned float64) models.OrderItem {
	item := models.OrderItem{
		ID:            id,
		OrderID:       1,
		InvoiceLineID: lineID,
		ProductCode:   code,
		Name:          name,
		Quantity:      qty,
		UnitPrice:     100,
		Status:        models.OrderItemActive,
	}
	if scanned > 0 {
		item.Verification = &models.ItemVerification{
			OrderItemID:   id,
			RequiredScans: qty,
			ScannedCount:  scanned,
			IsVerified:    scanned >= qty,
		}
	}
	return item
}

func lineIDPtr(v int64) *int64 { return &v }

func TestBuildReconcilePlanNoChange(t *testing.T) {
	items := []models.OrderItem{
		testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 1),
		testItem(2, lineIDPtr(11), "SKU-B", "Aceite Premier 1L", 2, 0),
	}
	lines := []ExternalLine{
		{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 3, UnitPrice: 100},
		{LineID: lineIDPtr(11), ProductCode: "SKU-B", Name: "Aceite Premier 1L", Quantity: 2, UnitPrice: 100},
	}

	plan := BuildReconcilePlan(items, lines)

	assert.False(t, plan.Changed)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Splits)
	assert.Empty(t, plan.Replacements)
	assert.Empty(t, plan.Merges)
	assert.Empty(t, plan.Deletes)
	assert.Empty(t, plan.Inserts)
}

func TestBuildReconcilePlanQuantityChange(t *testing.T) {
	t.Run("without scans updates in place", func(t *testing.T) {
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 0),
		}
		lines := []ExternalLine{
			{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 5, UnitPrice: 100},
		}

		plan := BuildReconcilePlan(items, lines)

		require.Len(t, plan.Updates, 1)
		assert.True(t, plan.Changed)
		assert.Equal(t, uint(1), plan.Updates[0].ItemID)
		assert.Equal(t, 5.0, plan.Updates[0].Quantity)
		require.NotNil(t, plan.Updates[0].RequiredScans)
		assert.Equal(t, 5.0, *plan.Updates[0].RequiredScans)
	})

	t.Run("with scans re-evaluates the requirement", func(t *testing.T) {
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 2),
		}
		lines := []ExternalLine{
			{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 5, UnitPrice: 100},
		}

		plan := BuildReconcilePlan(items, lines)

		require.Len(t, plan.Updates, 1)
		require.NotNil(t, plan.Updates[0].RequiredScans)
		assert.Equal(t, 5.0, *plan.Updates[0].RequiredScans)
	})

	t.Run("zero-scan ledger row still gets the new requirement", func(t *testing.T) {
		// A ledger row can exist before any scan (created by an insert or
		// a notes-only confirmation). Growing the line 1 -> 5 must raise
		// required_scans, otherwise one scan would fully verify five units.
		item := testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 1, 0)
		item.Verification = &models.ItemVerification{
			OrderItemID:   1,
			RequiredScans: 1,
			ScannedCount:  0,
		}
		lines := []ExternalLine{
			{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 5, UnitPrice: 100},
		}

		plan := BuildReconcilePlan([]models.OrderItem{item}, lines)

		require.Len(t, plan.Updates, 1)
		require.NotNil(t, plan.Updates[0].RequiredScans)
		assert.Equal(t, 5.0, *plan.Updates[0].RequiredScans)
	})
}

func TestBuildReconcilePlanProductSwap(t *testing.T) {
	t.Run("with scans splits and preserves evidence", func(t *testing.T) {
		// The invoice line now carries a different product, but two units
		// of the old one were already scanned.
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 2),
		}
		lines := []ExternalLine{
			{LineID: lineIDPtr(10), ProductCode: "SKU-Z", Name: "Arroz Roa 500g", Quantity: 3, UnitPrice: 100},
		}

		plan := BuildReconcilePlan(items, lines)

		require.Len(t, plan.Splits, 1)
		assert.Empty(t, plan.Updates)
		assert.Equal(t, uint(1), plan.Splits[0].ItemID)
		assert.Equal(t, 2.0, plan.Splits[0].FreezeQuantity, "original frozen at scanned count")
		assert.Equal(t, "SKU-Z", plan.Splits[0].NewLine.ProductCode)
	})

	t.Run("without scans updates in place", func(t *testing.T) {
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 0),
		}
		lines := []ExternalLine{
			{LineID: lineIDPtr(10), ProductCode: "SKU-Z", Name: "Arroz Roa 500g", Quantity: 3, UnitPrice: 100},
		}

		plan := BuildReconcilePlan(items, lines)

		require.Len(t, plan.Updates, 1)
		assert.Empty(t, plan.Splits)
		assert.Equal(t, "SKU-Z", plan.Updates[0].ProductCode)
		assert.Equal(t, "Arroz Roa 500g", plan.Updates[0].Name)
	})
}

func TestBuildReconcilePlanUnmatchedLocal(t *testing.T) {
	t.Run("with evidence becomes replaced", func(t *testing.T) {
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 1),
		}

		plan := BuildReconcilePlan(items, nil)

		require.Len(t, plan.Replacements, 1)
		assert.Equal(t, uint(1), plan.Replacements[0])
		assert.Empty(t, plan.Deletes)
		assert.True(t, plan.Changed)
	})

	t.Run("without evidence is deleted", func(t *testing.T) {
		items := []models.OrderItem{
			testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 0),
		}

		plan := BuildReconcilePlan(items, nil)

		require.Len(t, plan.Deletes, 1)
		assert.Empty(t, plan.Replacements)
	})
}

func TestBuildReconcilePlanDuplicateMerge(t *testing.T) {
	// Two local rows for the same product, the invoice consolidated them
	// into one line. The unmatched sibling's scans fold into the survivor.
	items := []models.OrderItem{
		testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 1),
		testItem(2, nil, "SKU-A", "Arroz Diana 500g", 2, 2),
	}
	lines := []ExternalLine{
		{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 5, UnitPrice: 100},
	}

	plan := BuildReconcilePlan(items, lines)

	require.Len(t, plan.Merges, 1)
	assert.Equal(t, uint(1), plan.Merges[0].SurvivorID)
	assert.Equal(t, uint(2), plan.Merges[0].DuplicateID)
	assert.Equal(t, 2.0, plan.Merges[0].AddScans)
	assert.Empty(t, plan.Replacements)
}

func TestBuildReconcilePlanNewLine(t *testing.T) {
	items := []models.OrderItem{
		testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 0),
	}
	lines := []ExternalLine{
		{LineID: lineIDPtr(10), ProductCode: "SKU-A", Name: "Arroz Diana 500g", Quantity: 3, UnitPrice: 100},
		{LineID: lineIDPtr(12), ProductCode: "SKU-C", Name: "Panela x4", Quantity: 1, UnitPrice: 80},
	}

	plan := BuildReconcilePlan(items, lines)

	require.Len(t, plan.Inserts, 1)
	assert.Equal(t, "SKU-C", plan.Inserts[0].ProductCode)
	assert.True(t, plan.Changed)
}

func TestBuildReconcilePlanMatchingPrecedence(t *testing.T) {
	// Line number wins even when the code points at a different local row
	items := []models.OrderItem{
		testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 3, 0),
		testItem(2, lineIDPtr(11), "SKU-B", "Aceite Premier 1L", 2, 0),
	}
	lines := []ExternalLine{
		{LineID: lineIDPtr(11), ProductCode: "SKU-A", Name: "Aceite Premier 1L", Quantity: 2, UnitPrice: 100},
	}

	plan := BuildReconcilePlan(items, lines)

	// Item 2 claimed by line number; item 1 left unmatched and deleted
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, uint(2), plan.Updates[0].ItemID)
	assert.Equal(t, []uint{1}, plan.Deletes)
}

func TestBuildReconcilePlanMatchesByNameWithoutCodes(t *testing.T) {
	items := []models.OrderItem{
		testItem(1, nil, "", "Coca Cola 1.5L", 2, 1),
	}
	lines := []ExternalLine{
		{Name: "COCA COLA 1.5l", Quantity: 2, UnitPrice: 100},
	}

	plan := BuildReconcilePlan(items, lines)

	assert.Empty(t, plan.Splits)
	assert.Empty(t, plan.Replacements)
	assert.Empty(t, plan.Inserts)
	assert.False(t, plan.Changed, "case and spacing differences alone are not a change")
}

func TestBuildReconcilePlanIgnoresReplacedItems(t *testing.T) {
	replaced := testItem(1, lineIDPtr(10), "SKU-A", "Arroz Diana 500g", 2, 2)
	replaced.Status = models.OrderItemReplaced
	items := []models.OrderItem{
		replaced,
		testItem(2, lineIDPtr(10), "SKU-Z", "Arroz Roa 500g", 3, 0),
	}
	lines := []ExternalLine{
		{LineID: lineIDPtr(10), ProductCode: "SKU-Z", Name: "Arroz Roa 500g", Quantity: 3, UnitPrice: 100},
	}

	plan := BuildReconcilePlan(items, lines)

	assert.False(t, plan.Changed, "frozen rows stay untouched on later passes")
}
