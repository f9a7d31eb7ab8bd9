package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/api/http/middleware"
	"github.com/fitforge/fitforge-backend/internal/auth"
	authmw "github.com/fitforge/fitforge-backend/internal/auth/middleware"
	"github.com/fitforge/fitforge-backend/internal/device"
	profileshttp "github.com/fitforge/fitforge-backend/internal/profiles/http"
)

type V1Deps struct {
	Devices  *device.Manager
	Provider auth.Provider
	Backup   profileshttp.BackupSink
	Logger   *zap.Logger
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	api.Use(authmw.FirebaseAuthMiddleware(dep.Provider, false))
	api.Use(middleware.DeviceSession(dep.Devices))

	profileshttp.New(dep.Provider, dep.Backup, dep.Logger).Register(api)
}
