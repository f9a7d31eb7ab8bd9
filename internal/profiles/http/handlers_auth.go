package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdomain "github.com/fitforge/fitforge-backend/internal/auth/domain"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterUser creates an account. The device signs in with the returned
// identity only after a login.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user, err := h.provider.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, authdomain.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		case errors.Is(err, authdomain.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to register user"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login signs the device in and runs the profile sync for the user.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sess, err := h.provider.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authdomain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, authdomain.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sign in"})
		}
		return
	}

	dev := session(c)
	ctx := c.Request.Context()
	id := sess.Identity
	dev.Feed.Publish(&id)
	result := dev.Orchestrator.Sync(ctx, &id)

	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"sync":    syncBody(result, dev.Orchestrator.State(id.UID)),
	})
}

// Logout clears the device and revokes the user's refresh tokens. Local
// state is cleared even when revocation fails.
func (h *Handler) Logout(c *gin.Context) {
	dev := session(c)
	id := identity(c)
	ctx := c.Request.Context()

	dev.Feed.Publish(nil)
	// covers a device whose feed never saw the user, e.g. after a restart
	dev.Invalidator.Logout(ctx)
	dev.Orchestrator.Logout(ctx, id.UID)

	if err := h.provider.Logout(ctx, id.UID); err != nil {
		h.logger.Warn("token revocation failed", zap.String("uid", id.UID), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}
