package printer

import (
	"bytes"
	"fmt"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// GeneratePackingSlipPDF renders the packing slip for an order: header
// with customer data, a QR code of the order number for the dispatch
// scanner, and the item/verification table.
func GeneratePackingSlipPDF(order *models.Order, items []models.OrderItem) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(120, 10, "Packing Slip", "", 0, "L", false, 0, "")

	// QR code of the order number (top right)
	qrPng, err := qrcode.Encode(order.OrderNumber, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("qr_order", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("qr_order", 165, 12, 30, 30, false, imgOptions, 0, "")

	pdf.Ln(12)
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(120, 6, fmt.Sprintf("Order: %s", order.OrderNumber), "", 1, "L", false, 0, "")
	if order.InvoiceNumber != "" {
		pdf.CellFormat(120, 6, fmt.Sprintf("Invoice: %s", order.InvoiceNumber), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(120, 6, fmt.Sprintf("Customer: %s", order.CustomerName), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Scanned", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Status", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for i := range items {
		item := &items[i]

		scanned := 0.0
		status := "pending"
		if item.Verification != nil {
			scanned = item.Verification.ScannedCount
			if item.Verification.IsVerified {
				status = "verified"
			}
		}
		if item.Status == models.OrderItemReplaced {
			status = "replaced"
		}

		name := item.Name
		if len(name) > 48 {
			name = name[:48]
		}
		pdf.CellFormat(90, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, trimFloat(item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, trimFloat(scanned), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, status, "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// trimFloat formats quantities without trailing zeros
func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
