package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/distrimax/fulfillgo/internal/middleware"
	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/gorilla/mux"
)

type lockRequest struct {
	OrderID    uint   `json:"orderId"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (lr *lockRequest) ttl() time.Duration {
	return time.Duration(lr.TTLMinutes) * time.Minute
}

// acquireLock takes the packing lock for the authenticated operator
func (r *Router) acquireLock(w http.ResponseWriter, req *http.Request) {
	var body lockRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	actor, _ := middleware.Actor(req)

	status, err := r.locks.Acquire(body.OrderID, actor, body.ttl())
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// heartbeatLock extends the lease while the operator keeps working
func (r *Router) heartbeatLock(w http.ResponseWriter, req *http.Request) {
	var body lockRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	actor, _ := middleware.Actor(req)

	status, err := r.locks.Heartbeat(body.OrderID, actor, body.ttl())
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// pauseLock releases the lock and leaves the order paused for handoff
func (r *Router) pauseLock(w http.ResponseWriter, req *http.Request) {
	var body lockRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	actor, _ := middleware.Actor(req)

	if err := r.locks.ReleaseWithStatus(body.OrderID, actor, models.PackagingPaused, body.Reason); err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(models.PackagingPaused)})
}

// blockLock releases the lock into a blocked state (missing stock or
// discrepancy). The status field selects which blocked state; pausing
// has its own endpoint.
func (r *Router) blockLock(w http.ResponseWriter, req *http.Request) {
	var body lockRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	actor, _ := middleware.Actor(req)

	status, ok := blockedStatus(body.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "status must be blocked_faltante or blocked_novedad")
		return
	}

	if err := r.locks.ReleaseWithStatus(body.OrderID, actor, status, body.Reason); err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// blockedStatus resolves the requested block type, accepting the short
// form as well as the full status value
func blockedStatus(s string) (models.PackagingStatus, bool) {
	switch s {
	case "faltante", string(models.PackagingBlockedFaltante):
		return models.PackagingBlockedFaltante, true
	case "novedad", string(models.PackagingBlockedNovedad):
		return models.PackagingBlockedNovedad, true
	}
	return "", false
}

// adminUnlock force-clears a stuck lock. Supervisors and admins only.
func (r *Router) adminUnlock(w http.ResponseWriter, req *http.Request) {
	actor, role := middleware.Actor(req)
	if role != "admin" && role != "supervisor" {
		respondError(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	var body lockRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	if err := r.locks.AdminUnlock(body.OrderID, actor, body.Reason); err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// lockStatus returns the current lock snapshot for an order
func (r *Router) lockStatus(w http.ResponseWriter, req *http.Request) {
	orderID, ok := pathUint(w, req, "orderID")
	if !ok {
		return
	}

	status, err := r.locks.GetLockStatus(orderID)
	if err != nil {
		respondPackingError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// pathUint parses a numeric path variable, responding 400 on garbage
func pathUint(w http.ResponseWriter, req *http.Request, name string) (uint, bool) {
	raw := mux.Vars(req)[name]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
