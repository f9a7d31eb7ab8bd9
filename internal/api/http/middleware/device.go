package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fitforge/fitforge-backend/internal/auth"
	"github.com/fitforge/fitforge-backend/internal/device"
)

const (
	HeaderDeviceID = "X-Device-Id"
	CtxDevice      = "device"
)

// DeviceSession resolves the X-Device-Id header to the device session. When
// the request carries a verified identity it is published on the device
// feed, so the device has switched to it before the handler runs.
func DeviceSession(devices *device.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderDeviceID))
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Device-Id header"})
			c.Abort()
			return
		}

		s, err := devices.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		if identity, ok := auth.IdentityFrom(c); ok {
			s.Feed.Publish(identity)
		}

		c.Set(CtxDevice, s)
		c.Next()
	}
}

// Device returns the session set by DeviceSession.
func Device(c *gin.Context) *device.Session {
	v, ok := c.Get(CtxDevice)
	if !ok {
		return nil
	}
	s, _ := v.(*device.Session)
	return s
}
