package httpapi

import (
	"errors"
	"net/http"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/provisioning"
	"dialer-platform/internal/reconcile"
	"dialer-platform/internal/settings"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Campaigns *campaigns.Service
	Dispatch  *dispatch.Engine
	Reconcile *reconcile.Engine
	Settings  *settings.Store
	Tokens    *provisioning.TokenIssuer
}

// --- Campaigns ---

func (h Handlers) CreateCampaign(c *gin.Context) {
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	var req campaigns.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	camp, ingested, err := h.Campaigns.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": camp, "contacts_ingested": ingested})
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	list, err := h.Campaigns.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign id required"})
		return
	}
	ov, err := h.Campaigns.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// --- Dispatch ---

type dispatchRequest struct {
	BatchSize int `json:"batch_size"`
}

// DispatchBatch runs one batch of outbound dials for a campaign. Each click
// of the dashboard button maps to exactly one call of this handler.
func (h Handlers) DispatchBatch(c *gin.Context) {
	if h.Dispatch == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch not configured"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign id required"})
		return
	}
	var req dispatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	res, err := h.Dispatch.DispatchBatch(c.Request.Context(), id, req.BatchSize)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) AdHocDial(c *gin.Context) {
	if h.Dispatch == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch not configured"})
		return
	}
	var req dispatch.AdHocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Dispatch.AdHocDial(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// BulkDial dials a list of numbers outside any campaign.
func (h Handlers) BulkDial(c *gin.Context) {
	if h.Dispatch == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch not configured"})
		return
	}
	var req dispatch.BulkDialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Dispatch.AdHocDialMany(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Reconciliation webhook ---

// TranscriptWebhook ingests a call outcome from the voice agent. It always
// answers 200 with a body describing the resolution so the agent does not
// retry events we have already applied.
func (h Handlers) TranscriptWebhook(c *gin.Context) {
	if h.Reconcile == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconcile not configured"})
		return
	}
	var ev reconcile.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Reconcile.ReconcileOutcome(c.Request.Context(), ev)
	if err != nil {
		logger.From(c.Request.Context()).Warn("outcome rejected",
			"call_id", ev.CallID, "phone", ev.Phone, "error", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Settings ---

func (h Handlers) GetSettings(c *gin.Context) {
	if h.Settings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings not configured"})
		return
	}
	all, err := h.Settings.All(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

type setSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h Handlers) SetSetting(c *gin.Context) {
	if h.Settings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings not configured"})
		return
	}
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Key == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "key required"})
		return
	}
	if err := h.Settings.Set(c.Request.Context(), req.Key, req.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}

// --- Media token ---

// JoinToken mints a room join token for the browser widget.
func (h Handlers) JoinToken(c *gin.Context) {
	if h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tokens not configured"})
		return
	}
	room := c.Query("room")
	identity := c.Query("identity")
	if room == "" || identity == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "room and identity required"})
		return
	}
	token, err := h.Tokens.JoinToken(room, identity)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// abortWithError maps internal sentinel errors onto HTTP statuses. Anything
// unmapped is a 500 with a generic body so storage details never leak.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaigns.ErrNotFound) || errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, campaigns.ErrInvalidArgument) ||
		errors.Is(err, calls.ErrInvalidArgument) ||
		errors.Is(err, dispatch.ErrInvalidArgument) ||
		errors.Is(err, reconcile.ErrInvalidEvent) ||
		errors.Is(err, reconcile.ErrUnresolved):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrInProgress) || errors.Is(err, calls.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrTrunkNotConfigured):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		logger.From(c.Request.Context()).Error("request failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
