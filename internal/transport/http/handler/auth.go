package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/app"
	"webinfinitygen/internal/transport/http/middleware"
	"webinfinitygen/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "username, email and password are required")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.FromError(c, err, "register failed")
		return
	}

	response.Created(c, "registered", gin.H{"user": result.Account, "token": result.Token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.FromError(c, err, "login failed")
		return
	}

	response.OK(c, "logged in", gin.H{"user": result.Account, "token": result.Token})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	account, err := h.authService.GetAccountByID(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "fetch current user failed")
		return
	}
	response.OK(c, "account loaded", account)
}

// Username answers /api/users/me?id=, which the web client uses to label chats.
func (h *AuthHandler) Username(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, "id is required")
		return
	}

	account, err := h.authService.GetAccountByID(c.Request.Context(), uint(id))
	if err != nil {
		response.FromError(c, err, "fetch user failed")
		return
	}
	response.OK(c, "username loaded", gin.H{"username": account.Username})
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.authService.ListAccounts(c.Request.Context(), app.ListAccountsInput{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		response.FromError(c, err, "list users failed")
		return
	}

	response.Page(c, "users listed", result.Items, paginationView(result.Pagination, "total_users"))
}
