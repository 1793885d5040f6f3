package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/distrimax/fulfillgo/internal/middleware"
	"github.com/distrimax/fulfillgo/internal/packing"
)

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

type partialRequest struct {
	ScannedCount  float64  `json:"scanned_count"`
	RequiredScans *float64 `json:"required_scans,omitempty"`
}

// verifyBarcode matches a scanned barcode against the order's items and
// records one scan
func (r *Router) verifyBarcode(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	var body barcodeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Barcode == "" {
		respondError(w, http.StatusBadRequest, "barcode is required")
		return
	}
	actor, _ := middleware.Actor(req)

	result, err := r.verifier.VerifyItemByBarcode(orderID, actor, body.Barcode)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// verifyItem applies an operator's manual confirmation for one item
func (r *Router) verifyItem(w http.ResponseWriter, req *http.Request) {
	itemID, ok := pathUint(w, req, "itemID")
	if !ok {
		return
	}

	var body packing.ManualVerification
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	actor, _ := middleware.Actor(req)

	piv, err := r.verifier.VerifyItemManual(itemID, actor, body)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, piv)
}

// savePartial persists a partial tally for one item
func (r *Router) savePartial(w http.ResponseWriter, req *http.Request) {
	itemID, ok := pathUint(w, req, "itemID")
	if !ok {
		return
	}

	var body partialRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	actor, _ := middleware.Actor(req)

	piv, err := r.verifier.SavePartialProgress(itemID, actor, body.ScannedCount, body.RequiredScans)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, piv)
}

// verifyAll bulk-marks every active item verified
func (r *Router) verifyAll(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}
	actor, _ := middleware.Actor(req)

	if err := r.verifier.VerifyAllItems(orderID, actor); err != nil {
		respondPackingError(w, err)
		return
	}

	progress, err := packing.SnapshotProgress(r.db.DB, orderID)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// completePackaging validates verification plus evidence and moves the
// order to ready_to_ship
func (r *Router) completePackaging(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}
	actor, _ := middleware.Actor(req)

	progress, err := r.verifier.CompletePackaging(orderID, actor)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// progressSnapshot returns the current verification progress. Read-only,
// no lock required: dashboards poll this endpoint.
func (r *Router) progressSnapshot(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	progress, err := packing.SnapshotProgress(r.db.DB, orderID)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}
