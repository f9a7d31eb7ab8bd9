package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
	"github.com/fitforge/fitforge-backend/internal/profilesync"
)

func syncBody(r profilesync.Result, state profilesync.State) gin.H {
	body := gin.H{"outcome": r.Outcome, "state": state}
	if r.Document != nil {
		body["document"] = r.Document
	}
	if r.Err != nil {
		body["error"] = r.Err.Error()
	}
	return body
}

// Sync reconciles the device with the remote profile of the signed-in user.
func (h *Handler) Sync(c *gin.Context) {
	dev := session(c)
	id := identity(c)

	result := dev.Orchestrator.Sync(c.Request.Context(), id)
	body := syncBody(result, dev.Orchestrator.State(id.UID))

	switch {
	case result.Synced():
		c.JSON(http.StatusOK, body)
	case errors.Is(result.Err, domain.ErrRemoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}
