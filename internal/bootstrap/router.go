package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/fitforge/fitforge-backend/internal/api/http"
	"github.com/fitforge/fitforge-backend/internal/api/http/middleware"
	"github.com/fitforge/fitforge-backend/internal/api/http/routes"
	"github.com/fitforge/fitforge-backend/internal/auth"
	"github.com/fitforge/fitforge-backend/internal/device"
	profileshttp "github.com/fitforge/fitforge-backend/internal/profiles/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	Redis       *redis.Client
	Remote      httpapi.ConnectionChecker
	Devices     *device.Manager
	Provider    auth.Provider
	Backup      profileshttp.BackupSink
	Logger      *zap.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderDeviceID, middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "X-Backup-Key", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Redis, dep.Remote)
	healthHandler.RegisterRoutes(r)

	routes.RegisterV1(r, routes.V1Deps{
		Devices:  dep.Devices,
		Provider: dep.Provider,
		Backup:   dep.Backup,
		Logger:   dep.Logger,
	})

	return r
}
