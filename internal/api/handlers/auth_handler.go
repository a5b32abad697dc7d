package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/middleware"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
)

type AuthHandler struct {
	authService  *services.AuthService
	secureCookie bool
	cookieTTL    time.Duration
}

func NewAuthHandler(authService *services.AuthService, secureCookie bool, ttl time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie, cookieTTL: ttl}
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AuthCookie, value, maxAge, "/", "", h.secureCookie, true)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}
	h.setCookie(c, token, int(h.cookieTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type RegisterRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Name     string      `json:"name" binding:"required"`
	Phone    string      `json:"phone"`
	Role     models.Role `json:"role"`
}

// Register creates a staff account; routes restrict it to admins.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.authService.Register(req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}
	if req.Phone != "" {
		if user, err = h.authService.UpdateProfile(user.ID, user.Name, req.Phone); err != nil {
			respondError(c, err, "Failed to create user")
			return
		}
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.authService.GetUserByID(currentUserID(c))
	if err != nil {
		respondError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, u)
}

type ProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// UpdateMe changes the caller's display name and SMS number.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.authService.UpdateProfile(currentUserID(c), req.Name, req.Phone)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, u)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.authService.ChangePassword(currentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err, "Failed to change password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
