package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"regulaite-backend/models"
	"regulaite-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator checks credentials and creates accounts
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Signup(ctx context.Context, req service.SignupRequest) (*models.User, error)
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	Generate(username string) (string, time.Time, error)
}

// AuthHandler handles HTTP requests for login and sign-up
type AuthHandler struct {
	auth   Authenticator
	tokens TokenIssuer
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, tokens TokenIssuer, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:   auth,
		tokens: tokens,
		logger: logger,
	}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest represents the request body for signing up
type SignupRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

// TokenResponse is returned after a successful login or sign-up
type TokenResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidLogin) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_CREDENTIALS",
				"message": "Invalid username or password.",
			},
		})
		return
	}
	if err != nil {
		h.logger.Error("Login failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LOGIN_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	user, err := h.auth.Signup(c.Request.Context(), service.SignupRequest{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		status, code := signupErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Sign-up failed", zap.String("username", req.Username), zap.Error(err))
		}
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func signupErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrSignupDisabled):
		return http.StatusForbidden, "SIGNUP_DISABLED"
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, "INVALID_USERNAME"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "WEAK_PASSWORD"
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, "USER_EXISTS"
	case errors.Is(err, service.ErrNotConfigured):
		return http.StatusServiceUnavailable, "SIGNUP_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "SIGNUP_FAILED"
	}
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expires, err := h.tokens.Generate(user.Username)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.String("username", user.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "TOKEN_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(status, gin.H{
		"success": true,
		"data": TokenResponse{
			Token:     token,
			TokenType: "Bearer",
			ExpiresAt: expires,
			User:      user,
		},
	})
}
