package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/distrimax/fulfillgo/internal/middleware"
	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/distrimax/fulfillgo/internal/services/printer"
	"gorm.io/gorm"
)

// listOrders returns orders, optionally filtered by status or
// packaging_status query parameters
func (r *Router) listOrders(w http.ResponseWriter, req *http.Request) {
	q := r.db.Model(&models.Order{}).Preload("Items").Preload("Items.Verification")

	if status := req.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if ps := req.URL.Query().Get("packaging_status"); ps != "" {
		q = q.Where("packaging_status = ?", ps)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Limit(200).Find(&orders).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Could not load orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// getOrder returns a single order with items and verification state
func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	var order models.Order
	err := r.db.Preload("Items").Preload("Items.Verification").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// resyncOrder re-fetches the order's invoice lines from the invoicing
// service and reconciles them against local items
func (r *Router) resyncOrder(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	if r.invoicing == nil {
		respondError(w, http.StatusServiceUnavailable, "Invoicing sync is not configured")
		return
	}

	result, err := r.invoicing.ResyncOrder(orderID)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type evidenceRequest struct {
	FileURL string `json:"file_url"`
	Note    string `json:"note,omitempty"`
}

// addEvidence records a packing photo for the order. At least one is
// required before completion.
func (r *Router) addEvidence(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	var body evidenceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.FileURL == "" {
		respondError(w, http.StatusBadRequest, "file_url is required")
		return
	}
	actor, _ := middleware.Actor(req)

	if _, err := r.locks.RequireActiveLock(orderID, actor); err != nil {
		respondPackingError(w, err)
		return
	}

	evidence := models.PackagingEvidence{
		OrderID:    orderID,
		FileURL:    body.FileURL,
		Note:       body.Note,
		UploadedBy: actor,
	}
	if err := r.db.Create(&evidence).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Could not save evidence")
		return
	}
	respondJSON(w, http.StatusCreated, evidence)
}

// packingSlip streams the order's packing slip as PDF
func (r *Router) packingSlip(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	var order models.Order
	if err := r.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not load order")
		return
	}

	var items []models.OrderItem
	if err := r.db.Preload("Verification").
		Where("order_id = ?", orderID).Order("id").Find(&items).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Could not load items")
		return
	}

	pdf, err := printer.GeneratePackingSlipPDF(&order, items)
	if err != nil {
		log.Printf("❌ Packing slip generation failed for order %d: %v", orderID, err)
		respondError(w, http.StatusInternalServerError, "Could not generate packing slip")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", order.OrderNumber))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
