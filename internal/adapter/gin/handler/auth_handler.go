package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"university-user-service/internal/adapter/gin/middleware"
	"university-user-service/internal/adapter/gin/response"
	"university-user-service/internal/usecase/auth"
	"university-user-service/internal/usecase/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/logger"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	uc  auth.Usecase
	log *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(uc auth.Usecase, log *zap.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, log: log}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    user.User `json:"user"`
}

// Register handles POST /api/users/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid register request", zap.Error(err))
		response.Fail(c, pkgerrors.KindValidation, "invalid request body")
		return
	}

	res, err := h.uc.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Success: true,
		Message: "user registered successfully",
		Token:   res.Token,
		User:    res.User,
	})
}

// Login handles POST /api/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid login request", zap.Error(err))
		response.Fail(c, pkgerrors.KindValidation, "invalid request body")
		return
	}

	res, err := h.uc.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Message: "login successful",
		Token:   res.Token,
		User:    res.User,
	})
}

// Logout handles POST /api/users/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Fail(c, pkgerrors.KindUnauthorized, "no token")
		return
	}

	if err := h.uc.Logout(c.Request.Context(), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "logged out successfully")
}
