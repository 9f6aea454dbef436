package api

import (
	"net/http"

	"github.com/anime-guess/internal/middleware"
	"github.com/anime-guess/internal/storage"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	User        *storage.User `json:"user"`
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, token, err := h.Auth.Register(r.Context(), req.Username, req.Password, req.Avatar)
	if err != nil {
		respondError(w, err, "Failed to register user")
		return
	}

	respondStatus(w, http.StatusCreated, AuthResponse{AccessToken: token, User: user})
}

// Login handles user login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err, "Failed to log in")
		return
	}

	respondJSON(w, AuthResponse{AccessToken: token, User: user})
}
