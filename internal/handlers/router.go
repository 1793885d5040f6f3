package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/distrimax/fulfillgo/internal/config"
	"github.com/distrimax/fulfillgo/internal/database"
	"github.com/distrimax/fulfillgo/internal/middleware"
	"github.com/distrimax/fulfillgo/internal/packing"
	"github.com/distrimax/fulfillgo/internal/services/invoicing"
	ws "github.com/distrimax/fulfillgo/internal/websocket"
	"github.com/gorilla/mux"
)

// Router wraps the mux router with the database and packing services
type Router struct {
	*mux.Router
	db        *database.DB
	cfg       *config.Config
	locks     *packing.LockManager
	verifier  *packing.Verifier
	invoicing *invoicing.Service
	hub       *ws.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, locks *packing.LockManager, verifier *packing.Verifier, invoicingSvc *invoicing.Service, hub *ws.Hub) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		db:        db,
		cfg:       cfg,
		locks:     locks,
		verifier:  verifier,
		invoicing: invoicingSvc,
		hub:       hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Real-time observers
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	authRequired := middleware.Auth(cfg.JWTSecret)

	// Order glue (protected)
	orders := r.PathPrefix("/api/orders").Subrouter()
	orders.Use(authRequired)
	orders.HandleFunc("", r.listOrders).Methods("GET")
	orders.HandleFunc("/{orderID}", r.getOrder).Methods("GET")

	// Packing routes (protected)
	pk := r.PathPrefix("/api/packing").Subrouter()
	pk.Use(authRequired)

	pk.HandleFunc("/lock/acquire", r.acquireLock).Methods("POST")
	pk.HandleFunc("/lock/heartbeat", r.heartbeatLock).Methods("POST")
	pk.HandleFunc("/lock/pause", r.pauseLock).Methods("POST")
	pk.HandleFunc("/lock/block", r.blockLock).Methods("POST")
	pk.HandleFunc("/lock/unlock", r.adminUnlock).Methods("POST")
	pk.HandleFunc("/lock/status/{orderID}", r.lockStatus).Methods("GET")

	pk.HandleFunc("/verify-item/{itemID}", r.verifyItem).Methods("PUT")
	pk.HandleFunc("/partial/{itemID}", r.savePartial).Methods("PUT")
	pk.HandleFunc("/verify-all/{orderID}", r.verifyAll).Methods("PUT")
	pk.HandleFunc("/verify-barcode/{orderID}", r.verifyBarcode).Methods("POST")
	pk.HandleFunc("/complete/{orderID}", r.completePackaging).Methods("POST")
	pk.HandleFunc("/snapshot/{orderID}", r.progressSnapshot).Methods("GET")
	pk.HandleFunc("/resync/{orderID}", r.resyncOrder).Methods("POST")
	pk.HandleFunc("/evidence/{orderID}", r.addEvidence).Methods("POST")
	pk.HandleFunc("/slip/{orderID}", r.packingSlip).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": "fulfillgo",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondPackingError maps the packing error taxonomy onto HTTP codes.
// Lock conflicts carry the current holder so the client can render
// "being packed by X, try later".
func respondPackingError(w http.ResponseWriter, err error) {
	var conflict *packing.LockConflictError
	if errors.As(err, &conflict) {
		payload := map[string]interface{}{
			"error": conflict.Err.Error(),
		}
		if conflict.Holder != "" {
			payload["holder"] = conflict.Holder
		}
		if conflict.ExpiresAt != nil {
			payload["expires_at"] = conflict.ExpiresAt
		}

		switch {
		case errors.Is(err, packing.ErrLockHeld):
			respondJSON(w, http.StatusLocked, payload)
		case errors.Is(err, packing.ErrLockExpired):
			respondJSON(w, http.StatusConflict, payload)
		default: // NotOwner
			respondJSON(w, http.StatusForbidden, payload)
		}
		return
	}

	var completion *packing.CompletionError
	if errors.As(err, &completion) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":          completion.Error(),
			"total_items":    completion.TotalItems,
			"verified_items": completion.VerifiedItems,
			"pending_items":  completion.PendingItems,
			"evidence_count": completion.EvidenceCount,
		})
		return
	}

	switch {
	case errors.Is(err, packing.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, packing.ErrBarcodeUnresolvable):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, packing.ErrProductNotInOrder):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, packing.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, packing.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, packing.ErrInvalidState):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, packing.ErrLockHeld):
		respondError(w, http.StatusLocked, err.Error())
	case errors.Is(err, packing.ErrNotOwner), errors.Is(err, packing.ErrLockExpired):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
