package handler

import (
	"errors"
	"net/http"

	"user_accounts/internal/middleware"
	"user_accounts/internal/model"
	"user_accounts/internal/response"
	"user_accounts/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidData        = "Some of the submitted data is invalid"
	msgInvalidCredentials = "Phone number not found or wrong password"
	msgTokenInvalid       = "Token not found or invalid"
	msgConflict           = "Phone number is already registered"
	msgUnavailable        = "Service temporarily unavailable"
	msgInternal           = "Something went wrong"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	service service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Register creates an account and returns its first token
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err, msgInvalidData)
		return
	}

	result, err := h.service.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Role:     req.Role,
		Phone:    req.Phone,
		Address:  req.Address,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, msgInvalidData)
		return
	}

	response.Success(c, http.StatusCreated, "New user registered", result)
}

// Login exchanges phone and password for a fresh token
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err, msgInvalidData)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(c, err, msgInvalidCredentials)
		return
	}

	response.Success(c, http.StatusOK, "Logged in", result)
}

// Profile returns the authenticated user
func (h *AuthHandler) Profile(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	user, err := h.service.Profile(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, msgTokenInvalid)
		return
	}

	response.Success(c, http.StatusOK, "Profile retrieved", user)
}

// Logout revokes the token used for this request
func (h *AuthHandler) Logout(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	if err := h.service.Logout(c.Request.Context(), caller); err != nil {
		respondError(c, err, msgTokenInvalid)
		return
	}

	response.Success(c, http.StatusOK, "Token revoked", gin.H{})
}

// Tokens lists the caller's active tokens without their secrets
func (h *AuthHandler) Tokens(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	tokens, err := h.service.Tokens(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, msgTokenInvalid)
		return
	}

	response.Success(c, http.StatusOK, "Tokens retrieved", tokens)
}

// respondError maps service errors onto status codes. message is used for
// validation and unauthorized failures, which differ per endpoint.
func respondError(c *gin.Context, err error, message string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(c, http.StatusForbidden, msgInvalidData, verr.Fields)
	case errors.Is(err, errMalformedBody):
		response.Error(c, http.StatusBadRequest, "Malformed request body", nil)
	case errors.Is(err, service.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, message, nil)
	case errors.Is(err, service.ErrConflict):
		response.Error(c, http.StatusConflict, msgConflict, nil)
	case errors.Is(err, service.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, msgUnavailable, nil)
	default:
		response.Error(c, http.StatusInternalServerError, msgInternal, nil)
	}
}

// RegisterAuthRoutes registers auth routes. authMW resolves the bearer token
// and scopeMW rejects callers without the required scope.
func (h *AuthHandler) RegisterAuthRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, scopeMW gin.HandlerFunc) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	protected := authGroup.Group("")
	protected.Use(authMW, scopeMW)
	{
		protected.GET("/profile", h.Profile)
		protected.POST("/logout", h.Logout)
		protected.GET("/tokens", h.Tokens)
	}
}
