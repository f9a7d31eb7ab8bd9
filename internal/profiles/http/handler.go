package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/api/http/middleware"
	"github.com/fitforge/fitforge-backend/internal/auth"
	authdomain "github.com/fitforge/fitforge-backend/internal/auth/domain"
	authmw "github.com/fitforge/fitforge-backend/internal/auth/middleware"
	"github.com/fitforge/fitforge-backend/internal/device"
	"github.com/fitforge/fitforge-backend/internal/logging"
	"github.com/fitforge/fitforge-backend/internal/profiles/localstore"
)

// BackupSink stores device exports off-site.
type BackupSink interface {
	Store(ctx context.Context, deviceID string, exp *localstore.Export) (string, error)
}

type Handler struct {
	provider auth.Provider
	backup   BackupSink
	logger   *zap.Logger
}

// New builds the handler. backup may be nil.
func New(provider auth.Provider, backup BackupSink, logger *zap.Logger) *Handler {
	return &Handler{
		provider: provider,
		backup:   backup,
		logger:   logging.OrNop(logger),
	}
}

// Register mounts the device routes. rg must already run the auth and
// device middlewares.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.RegisterUser)
	rg.POST("/auth/login", h.Login)

	user := rg.Group("")
	user.Use(authmw.RequireIdentity())
	user.POST("/auth/logout", h.Logout)
	user.POST("/sync", h.Sync)
	user.PUT("/profile/:kind", h.SaveProfile)

	rg.GET("/profile/:kind", h.GetProfile)
	rg.GET("/questionnaire", h.GetQuestionnaire)
	rg.PUT("/questionnaire", h.SaveQuestionnaire)
	rg.DELETE("/questionnaire", h.ClearQuestionnaire)
	rg.GET("/configuration", h.GetConfiguration)
	rg.GET("/settings", h.GetSettings)
	rg.PUT("/settings", h.SaveSettings)

	rg.GET("/forms/:formId", h.GetForm)
	rg.PUT("/forms/:formId", h.SaveForm)
	rg.DELETE("/forms/:formId", h.ClearForm)

	rg.GET("/export", h.Export)
	rg.POST("/import", h.Import)
	rg.GET("/cache/:collection", h.GetCache)
	rg.PUT("/cache/:collection", h.PutCache)
	rg.GET("/changes", h.StreamChanges)
}

func session(c *gin.Context) *device.Session {
	return middleware.Device(c)
}

func identity(c *gin.Context) *authdomain.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
