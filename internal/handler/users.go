package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/store"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *store.Store.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash, fullName, role string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
}

// UserHandler handles staff account endpoints. Admin only.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(st UserStore) *UserHandler {
	return &UserHandler{store: st}
}

// RegisterRoutes registers user endpoints on the given Chi router.
// Mounted at /api/users behind the admin role check.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func validRole(role string) bool {
	switch role {
	case enum.RoleAdmin, enum.RoleWaiter, enum.RoleKitchen, enum.RoleReception:
		return true
	}
	return false
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list users")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if !validRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("hash password")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, string(hash), req.FullName, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already taken"})
			return
		}
		logrus.WithError(err).Error("create user")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
