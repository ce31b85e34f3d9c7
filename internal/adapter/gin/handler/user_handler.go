package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"university-user-service/internal/adapter/gin/middleware"
	"university-user-service/internal/adapter/gin/response"
	"university-user-service/internal/usecase/user"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UpdateUserRequest represents the HTTP request body for updating a user.
// Every field is optional.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar"`
}

// ListUsersResponse represents the HTTP response for listing users
type ListUsersResponse struct {
	Success    bool        `json:"success"`
	Count      int         `json:"count"`
	Data       []user.User `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Query: c.Query("q"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := ListUsersResponse{
		Success: true,
		Count:   len(resp.Users),
		Data:    resp.Users,
	}
	if p := resp.Pagination; p != nil {
		out.Pagination = Pagination{Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages}
	}
	c.JSON(http.StatusOK, out)
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	u, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: c.Param("id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", u)
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Fail(c, pkgerrors.KindUnauthorized, "no token")
		return
	}

	u, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: claims.UserID})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", u)
}

// UpdateUser handles PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithContext(c.Request.Context(), h.log).Warn("invalid update user request", zap.Error(err))
		response.Fail(c, pkgerrors.KindValidation, "invalid request body")
		return
	}

	u, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:       c.Param("id"),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Avatar:   req.Avatar,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "user updated successfully", u)
}

// DeleteUser handles DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: c.Param("id")}); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "user deleted successfully")
}

// queryInt reads an optional positive integer query parameter. A missing
// parameter yields 0 so the usecase applies its default.
func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, pkgerrors.NewValidationError(name, "must be a positive integer")
	}
	return v, nil
}
