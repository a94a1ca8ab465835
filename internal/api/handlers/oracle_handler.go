package handlers

import (
	"context"
	"net/http"

	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/dorucioclea/dlc-stack/internal/tracing"
	"github.com/gin-gonic/gin"
)

// OracleService is what the handler needs from the oracle
type OracleService interface {
	CreateEvent(ctx context.Context, eventID, maturation string, pair oracle.AssetPair) (*oracle.EventView, error)
	Attest(ctx context.Context, eventID string, pair oracle.AssetPair, outcome uint64) (*oracle.EventView, error)
	Announcement(ctx context.Context, eventID string, pair oracle.AssetPair) (*oracle.EventView, error)
	Announcements(ctx context.Context, pair oracle.AssetPair) ([]oracle.EventView, error)
	PublicKey() string
}

// OracleHandler serves the oracle's HTTP routes
type OracleHandler struct {
	service OracleService
	tracer  tracing.Tracer
}

// NewOracleHandler creates a new oracle handler
func NewOracleHandler(service OracleService, tracer tracing.Tracer) *OracleHandler {
	return &OracleHandler{service: service, tracer: tracer}
}

type createEventQuery struct {
	Maturation string `form:"maturation"`
	AssetPair  string `form:"asset_pair"`
}

type attestQuery struct {
	Outcome   *uint64 `form:"outcome" binding:"required"`
	AssetPair string  `form:"asset_pair"`
}

type pairQuery struct {
	AssetPair string `form:"asset_pair"`
}

// PublicKeyResponse carries the oracle's x-only key
type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// HandleCreateEvent announces a new event
func (h *OracleHandler) HandleCreateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-event")
	defer h.tracer.EndTransaction(txn)

	var q createEventQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, newValidationError(err.Error()))
		return
	}
	pair, err := oracle.ParseAssetPair(q.AssetPair)
	if err != nil {
		writeError(c, err)
		return
	}
	eventID := c.Param("event_id")
	h.tracer.AddAttribute(txn, "event_id", eventID)
	h.tracer.AddAttribute(txn, "asset_pair", string(pair))

	view, err := h.service.CreateEvent(c.Request.Context(), eventID, q.Maturation, pair)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleAttest signs the outcome of an announced event
func (h *OracleHandler) HandleAttest(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-attest")
	defer h.tracer.EndTransaction(txn)

	var q attestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, newValidationError("outcome must be a non-negative integer"))
		return
	}
	pair, err := oracle.ParseAssetPair(q.AssetPair)
	if err != nil {
		writeError(c, err)
		return
	}
	eventID := c.Param("event_id")
	h.tracer.AddAttribute(txn, "event_id", eventID)
	h.tracer.AddAttribute(txn, "outcome", *q.Outcome)

	view, err := h.service.Attest(c.Request.Context(), eventID, pair, *q.Outcome)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleGetAnnouncement returns one event
func (h *OracleHandler) HandleGetAnnouncement(c *gin.Context) {
	var q pairQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, newValidationError(err.Error()))
		return
	}
	pair, err := oracle.ParseAssetPair(q.AssetPair)
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := h.service.Announcement(c.Request.Context(), c.Param("event_id"), pair)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleListAnnouncements returns every event
func (h *OracleHandler) HandleListAnnouncements(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-announcements")
	defer h.tracer.EndTransaction(txn)

	var q pairQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, newValidationError(err.Error()))
		return
	}
	pair, err := oracle.ParseAssetPair(q.AssetPair)
	if err != nil {
		writeError(c, err)
		return
	}

	views, err := h.service.Announcements(c.Request.Context(), pair)
	if err != nil {
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// HandlePublicKey returns the oracle key
func (h *OracleHandler) HandlePublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, PublicKeyResponse{PublicKey: h.service.PublicKey()})
}

// RegisterRoutes registers the handler's routes. auth guards the routes that
// create or sign.
func (h *OracleHandler) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	v1 := router.Group("/v1")
	v1.GET("/create_event/:event_id", auth, h.HandleCreateEvent)
	v1.GET("/attest/:event_id", auth, h.HandleAttest)
	v1.GET("/announcements", h.HandleListAnnouncements)
	v1.GET("/announcement/:event_id", h.HandleGetAnnouncement)
	v1.GET("/publickey", h.HandlePublicKey)
}
