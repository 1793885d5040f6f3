package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/distrimax/fulfillgo/internal/utils"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// login authenticates a user and returns JWT tokens
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	var user models.UserAuth
	if err := r.db.Where("username = ? OR email = ?", body.Username, body.Username).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !utils.CheckPasswordHash(body.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	r.db.Model(&user).Update("last_login", now)

	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		log.Printf("❌ Token generation failed for %s: %v", user.Username, err)
		respondError(w, http.StatusInternalServerError, "Could not generate tokens")
		return
	}

	log.Printf("🔓 Login: %s (%s)", user.Username, user.Role)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

// register creates a new user account
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if len(body.Password) < 8 {
		respondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	role := body.Role
	switch role {
	case "":
		role = "packer"
	case "packer", "supervisor", "admin":
	default:
		respondError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	hash, err := utils.HashPassword(body.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Could not hash password")
		return
	}

	user := models.UserAuth{
		Username: body.Username,
		Email:    body.Email,
		Password: hash,
		Role:     role,
	}
	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusConflict, "Username or email already taken")
		return
	}

	log.Printf("👤 Registered user %s (%s)", user.Username, user.Role)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// logout is a stateless no-op kept for client symmetry. Tokens simply
// expire; there is no server-side session to tear down.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
