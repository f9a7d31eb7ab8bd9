package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/profiles/localstore"
	"github.com/fitforge/fitforge-backend/internal/usercache"
)

const maxImportSize = 5 << 20

// Export returns the device snapshot. With ?backup=true it is also uploaded
// when a backup sink is configured.
func (h *Handler) Export(c *gin.Context) {
	dev := session(c)
	ctx := c.Request.Context()
	exp := dev.Local.ExportData(ctx)

	if c.Query("backup") == "true" {
		if h.backup == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backup not configured"})
			return
		}
		key, err := h.backup.Store(ctx, dev.ID, exp)
		if err != nil {
			h.logger.Error("export backup failed", zap.String("device_id", dev.ID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store backup"})
			return
		}
		c.Header("X-Backup-Key", key)
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="fitforge-export-%s.json"`, time.Now().UTC().Format("20060102")))
	c.JSON(http.StatusOK, exp)
}

func (h *Handler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	if len(raw) > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import too large"})
		return
	}

	var exp localstore.Export
	if err := json.Unmarshal(raw, &exp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "details": err.Error()})
		return
	}

	report, err := session(c).Local.ImportData(c.Request.Context(), &exp)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if report != nil {
			body["report"] = report
		}
		if errors.Is(err, localstore.ErrInvalidExport) {
			c.JSON(http.StatusBadRequest, body)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (h *Handler) cacheTarget(c *gin.Context) (usercache.Collection, string, bool) {
	col, err := usercache.Lookup(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return col, "", false
	}
	if !col.Scoped {
		return col, "", true
	}
	id := identity(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return col, "", false
	}
	return col, id.UID, true
}

func (h *Handler) GetCache(c *gin.Context) {
	col, uid, ok := h.cacheTarget(c)
	if !ok {
		return
	}
	items := session(c).Caches.Get(c.Request.Context(), col, uid)
	if items == nil {
		items = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, gin.H{"collection": col.Name, "items": items})
}

func (h *Handler) PutCache(c *gin.Context) {
	col, uid, ok := h.cacheTarget(c)
	if !ok {
		return
	}

	var items json.RawMessage
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if !session(c).Caches.Put(c.Request.Context(), col, uid, items) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store cache"})
		return
	}
	c.Status(http.StatusNoContent)
}

// StreamChanges streams the device's storage changes using Server-Sent
// Events.
func (h *Handler) StreamChanges(c *gin.Context) {
	dev := session(c)
	ctx := c.Request.Context()

	changes, err := dev.KV.Watch(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to watch changes"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}
	c.Status(http.StatusOK)
	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case change, open := <-changes:
			if !open {
				return
			}
			data, _ := json.Marshal(change)
			fmt.Fprintf(c.Writer, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
