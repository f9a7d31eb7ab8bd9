package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetForm(c *gin.Context) {
	dev := session(c)
	formID := c.Param("formId")
	ctx := c.Request.Context()

	body := gin.H{
		"formId":  formID,
		"data":    dev.Forms.LoadFormData(ctx, formID),
		"pending": dev.Debouncer.Pending(formID),
	}
	if at, ok := dev.Forms.SavedAt(ctx, formID); ok {
		body["savedAt"] = at
	}
	c.JSON(http.StatusOK, body)
}

// SaveForm queues the draft behind the debounce window; ?flush=true writes
// it immediately.
func (h *Handler) SaveForm(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	dev := session(c)
	formID := c.Param("formId")
	if !dev.Debouncer.Submit(formID, data) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device session is shutting down"})
		return
	}

	if c.Query("flush") != "true" {
		c.JSON(http.StatusAccepted, gin.H{"formId": formID, "pending": true})
		return
	}
	if !dev.Debouncer.FlushForm(c.Request.Context(), formID) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save form"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formId": formID, "pending": false})
}

func (h *Handler) ClearForm(c *gin.Context) {
	dev := session(c)
	formID := c.Param("formId")
	ctx := c.Request.Context()

	dev.Debouncer.FlushForm(ctx, formID)
	dev.Forms.ClearFormData(ctx, formID)
	c.Status(http.StatusNoContent)
}
