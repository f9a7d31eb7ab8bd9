package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
)

// kinds maps the :kind path segment to a profile kind.
var kinds = map[string]domain.Kind{
	"user":      domain.KindUser,
	"equipment": domain.KindEquipment,
	"nutrition": domain.KindNutrition,
}

func (h *Handler) GetProfile(c *gin.Context) {
	kind, ok := kinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown profile kind"})
		return
	}

	local := session(c).Local
	ctx := c.Request.Context()

	var profile any
	switch kind {
	case domain.KindUser:
		profile = local.LoadUserProfile(ctx)
	case domain.KindEquipment:
		profile = local.LoadEquipmentProfile(ctx)
	case domain.KindNutrition:
		profile = local.LoadNutritionProfile(ctx)
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// SaveProfile is the explicit save path: the profile is written remotely
// and mirrored on the device.
func (h *Handler) SaveProfile(c *gin.Context) {
	kind, ok := kinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown profile kind"})
		return
	}

	var (
		value any
		err   error
	)
	switch kind {
	case domain.KindUser:
		var p domain.UserProfile
		err = c.ShouldBindJSON(&p)
		value = p
	case domain.KindEquipment:
		var p domain.EquipmentProfile
		err = c.ShouldBindJSON(&p)
		value = p
	case domain.KindNutrition:
		var p domain.NutritionProfile
		err = c.ShouldBindJSON(&p)
		value = p
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	dev := session(c)
	if err := dev.Orchestrator.SaveProfile(c.Request.Context(), identity(c), kind, value); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidProfile), errors.Is(err, domain.ErrUnknownKind):
			badRequest(c, err.Error())
		case errors.Is(err, domain.ErrNoUser):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		default:
			h.logger.Error("profile save failed", zap.String("kind", string(kind)), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to save profile"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": value})
}

func (h *Handler) GetQuestionnaire(c *gin.Context) {
	local := session(c).Local
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"questionnaire": local.LoadQuestionnaireState(ctx),
		"shouldRestart": local.ShouldRestartQuestionnaire(ctx),
	})
}

func (h *Handler) SaveQuestionnaire(c *gin.Context) {
	var q domain.QuestionnaireState
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	local := session(c).Local
	ctx := c.Request.Context()
	if !local.SaveQuestionnaireState(ctx, q) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save questionnaire"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionnaire": local.LoadQuestionnaireState(ctx)})
}

func (h *Handler) ClearQuestionnaire(c *gin.Context) {
	session(c).Local.ClearQuestionnaireState(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetConfiguration(c *gin.Context) {
	local := session(c).Local
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"complete":                   local.IsConfigurationComplete(ctx),
		"shouldRestartQuestionnaire": local.ShouldRestartQuestionnaire(ctx),
		"lastSync":                   local.LastSync(ctx),
	})
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": session(c).Local.LoadAppSettings(c.Request.Context())})
}

func (h *Handler) SaveSettings(c *gin.Context) {
	local := session(c).Local
	ctx := c.Request.Context()

	// start from the stored settings so partial bodies keep other fields
	settings := local.LoadAppSettings(ctx)
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if !local.SaveAppSettings(ctx, settings) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
