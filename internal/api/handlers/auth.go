package handlers

import (
	"errors"
	"net/http"

	"github.com/dom/product-console/internal/api/middleware"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	lg          *zap.SugaredLogger
}

func NewAuthHandler(authService *service.AuthService, lg *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{authService: authService, lg: lg}
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,password_strength"`
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Role      string `json:"role" validate:"omitempty,oneof=admin user"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    domain.PublicUser `json:"user"`
}

type MeResponse struct {
	User domain.PublicUser `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.lg.Warnw("register: invalid body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)

	if details := ValidateStruct(req); details != nil {
		h.lg.Warnw("register: validation failed", "details", details)
		writeValidationError(w, details)
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			h.lg.Warnw("register: duplicate email", "email", req.Email)
			writeError(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		h.lg.Errorw("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.lg.Warnw("login: invalid body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)

	if details := ValidateStruct(req); details != nil {
		h.lg.Warnw("login: validation failed", "details", details)
		writeValidationError(w, details)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.lg.Warnw("login: invalid credentials", "email", req.Email)
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.lg.Errorw("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access token required")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.lg.Warnw("me: token subject no longer exists", "userId", identity.UserID)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.lg.Errorw("me failed", "userId", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: user})
}
