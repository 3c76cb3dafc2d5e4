package users

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"usersvc/internal/apperror"
	"usersvc/internal/auth"
)

// Handler handles account-related HTTP requests
type Handler struct {
	service  Service
	tokenTTL time.Duration
}

// NewHandler creates a new account handler. tokenTTL is reported to clients
// alongside issued tokens.
func NewHandler(service Service, tokenTTL time.Duration) *Handler {
	return &Handler{
		service:  service,
		tokenTTL: tokenTTL,
	}
}

// Register handles POST /api/users
// @Summary Register a new account
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account details"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} apperror.Response
// @Failure 500 {object} apperror.Response
// @Router /api/users [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{ID: user.ID})
}

// Login handles POST /api/users/login
// @Summary Exchange credentials for a session token
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Email and password"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} apperror.Response
// @Failure 401 {object} apperror.Response
// @Failure 429 {object} apperror.Response
// @Router /api/users/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenTTL / time.Second),
	})
}

// List handles GET /api/users
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// Profile handles GET /api/users/profile
func (h *Handler) Profile(c *gin.Context, id auth.Identity) {
	user, err := h.service.GetProfile(c.Request.Context(), id.ID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile
// @Summary Update the caller's profile
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} User
// @Failure 400 {object} apperror.Response
// @Failure 401 {object} apperror.Response
// @Failure 404 {object} apperror.Response
// @Router /api/users/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context, id auth.Identity) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), id.ID, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "profile updated",
		"user":    user,
	})
}

// DeleteProfile handles DELETE /api/users/profile
func (h *Handler) DeleteProfile(c *gin.Context, id auth.Identity) {
	if err := h.service.DeleteProfile(c.Request.Context(), id.ID); err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so the client
// discards its copy.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// NotImplemented answers routes that are reserved but not offered.
func (h *Handler) NotImplemented(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, apperror.Response{
		Error:   "not_implemented",
		Message: "this operation is not available",
	})
}

// bindJSON decodes the body into dst. An empty body decodes as an empty
// object so the service reports which fields are missing.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		apperror.Respond(c, apperror.Validation("invalid_fields", "invalid value for field "+typeErr.Field))
		return false
	}

	apperror.Respond(c, apperror.Validation("invalid_body", "request body must be a valid JSON object"))
	return false
}
