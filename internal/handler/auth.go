package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/abba-pos/api/internal/auth"
	"github.com/abba-pos/api/internal/store"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *store.Store; narrow interface for testability.
type AuthStore interface {
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (store.User, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: st, jwtSecret: jwtSecret}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         store.User `json:"user"`
}

// --- Handlers ---

// Login handles username + password authentication.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		logrus.WithError(err).Error("login lookup")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.respondWithTokens(w, user)
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		logrus.WithError(err).Error("refresh lookup")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !user.IsActive {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user is inactive"})
		return
	}

	h.respondWithTokens(w, user)
}

// --- Helpers ---

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, user store.User) {
	accessToken, err := auth.GenerateToken(h.jwtSecret, user.ID, user.Role)
	if err != nil {
		logrus.WithError(err).Error("generate access token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, user.ID)
	if err != nil {
		logrus.WithError(err).Error("generate refresh token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}
