package auth

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler handles account and session HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new auth handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateAccount handles POST /api/create-account
// @Summary Register a new account
// @Description Creates an account for the given email and password
// @Accept json
// @Produce json
// @Param request body CreateAccountRequest true "Email and password"
// @Success 201 {object} CreateAccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/create-account [post]
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "valid email and password are required"})
		return
	}

	email, err := h.service.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch err {
		case ErrValidation:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case ErrDuplicateAccount:
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			log.Printf("Failed to create account for %s: %v", req.Email, err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create account"})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateAccountResponse{
		Success: true,
		Email:   email,
	})
}

// Login handles POST /api/login
// @Summary Log in
// @Description Verifies credentials and issues a session token
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Email and password"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch err {
		case ErrInvalidCredentials:
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		default:
			log.Printf("Failed to log in %s: %v", req.Email, err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to log in"})
		}
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Email:   req.Email,
	})
}

// VerifySession handles POST /api/verify-session
// @Summary Check a session token
// @Description Reports whether the token belongs to a live session
// @Accept json
// @Produce json
// @Param request body SessionRequest true "Session token"
// @Success 200 {object} VerifyResponse
// @Router /api/verify-session [post]
func (h *Handler) VerifySession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, VerifyResponse{Valid: false})
		return
	}

	email, err := h.service.VerifySession(c.Request.Context(), req.Token)
	if err != nil {
		// An unknown or expired token is an answer, not an error.
		c.JSON(http.StatusOK, VerifyResponse{Valid: false})
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Valid: true,
		Email: email,
	})
}

// Logout handles POST /api/logout
// @Summary Log out
// @Description Revokes the session with the given token
// @Accept json
// @Produce json
// @Param request body SessionRequest true "Session token"
// @Success 200 {object} map[string]bool
// @Router /api/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Token != "" {
		if err := h.service.Logout(c.Request.Context(), req.Token); err != nil {
			log.Printf("Failed to remove session on logout: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
