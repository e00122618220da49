package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streampulse/viewership-service/internal/client"
	"github.com/streampulse/viewership-service/internal/domain"
	"github.com/streampulse/viewership-service/internal/repository"
	"github.com/streampulse/viewership-service/internal/service"
	"github.com/streampulse/viewership-service/pkg/log"
	"github.com/streampulse/viewership-service/pkg/response"
)

// Handler handles HTTP requests for the viewership service.
type Handler struct {
	registry service.ListenerRegistry
	streams  repository.StreamRepository
	liveness *client.LivenessClient
}

// NewHandler creates a new HTTP handler.
func NewHandler(registry service.ListenerRegistry, streams repository.StreamRepository, liveness *client.LivenessClient) *Handler {
	return &Handler{
		registry: registry,
		streams:  streams,
		liveness: liveness,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Listener surface consumed by player clients.
	r.GET("/listeners", h.GetListeners)
	r.POST("/listeners", h.UpdateListeners)

	api := r.Group("/api/v1")
	{
		streams := api.Group("/streams")
		{
			streams.GET("/:id", h.GetStream)
			streams.GET("/:id/live", h.GetStreamLive)
		}
	}

	r.GET("/health", h.HealthCheck)
}

// GetListeners returns the in-window listeners for a stream.
func (h *Handler) GetListeners(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	streamID := c.Query("streamId")
	if streamID == "" {
		c.JSON(http.StatusBadRequest, domain.ListenersResponse{
			Listeners: []domain.ListenerView{},
			Error:     "missing_stream_id",
		})
		return
	}

	entries, count, err := h.registry.GetActive(ctx, streamID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to get active listeners")
		c.JSON(http.StatusInternalServerError, domain.ListenersResponse{
			Listeners: []domain.ListenerView{},
			Error:     "internal_error",
		})
		return
	}

	views := make([]domain.ListenerView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.ToView())
	}

	c.JSON(http.StatusOK, domain.ListenersResponse{
		Success:   true,
		Listeners: views,
		Count:     count,
	})
}

// UpdateListeners applies a join, heartbeat, or leave action. The body
// is JSON, arriving either as a regular request or as a sendBeacon
// text payload.
func (h *Handler) UpdateListeners(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.UpdateResponse{Error: "unreadable_body"})
		return
	}

	var req domain.UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, domain.UpdateResponse{Error: "invalid_body"})
		return
	}

	if req.StreamID == "" {
		c.JSON(http.StatusBadRequest, domain.UpdateResponse{Error: "missing_stream_id"})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, domain.UpdateResponse{Error: "missing_user_id"})
		return
	}

	switch req.Action {
	case domain.ActionJoin:
		res, err := h.registry.Join(ctx, req.StreamID, req.UserID, req.UserName, req.AvatarURL)
		if err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, req.StreamID).Msg("join failed")
			c.JSON(http.StatusInternalServerError, domain.UpdateResponse{Error: "internal_error"})
			return
		}
		resp := domain.UpdateResponse{Success: true, ActiveViewers: res.ActiveViewers}
		if res.TotalViewsOK {
			total := res.TotalViews
			resp.TotalViews = &total
		}
		c.JSON(http.StatusOK, resp)

	case domain.ActionHeartbeat:
		count, err := h.registry.Heartbeat(ctx, req.StreamID, req.UserID, req.UserName, req.AvatarURL)
		if err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, req.StreamID).Msg("heartbeat failed")
			c.JSON(http.StatusInternalServerError, domain.UpdateResponse{Error: "internal_error"})
			return
		}
		c.JSON(http.StatusOK, domain.UpdateResponse{Success: true, ActiveViewers: count})

	case domain.ActionLeave:
		count, err := h.registry.Leave(ctx, req.StreamID, req.UserID)
		if err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, req.StreamID).Msg("leave failed")
			c.JSON(http.StatusInternalServerError, domain.UpdateResponse{Error: "internal_error"})
			return
		}
		c.JSON(http.StatusOK, domain.UpdateResponse{Success: true, ActiveViewers: count})

	default:
		c.JSON(http.StatusBadRequest, domain.UpdateResponse{Error: "unknown_action"})
	}
}

// GetStream returns stream metadata merged with the current count.
func (h *Handler) GetStream(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	streamID := c.Param("id")

	stream, err := h.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			response.NotFound(c, "stream not found")
			return
		}
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to get stream")
		response.InternalError(c, "failed to get stream")
		return
	}

	count, _ := h.registry.ActiveCount(ctx, streamID)

	response.Success(c, gin.H{
		"stream":         stream,
		"active_viewers": count,
	})
}

// GetStreamLive reports whether the stream is currently live.
func (h *Handler) GetStreamLive(c *gin.Context) {
	ctx := c.Request.Context()
	streamID := c.Param("id")

	live := h.liveness.IsLive(ctx, streamID)

	response.Success(c, gin.H{
		"stream_id": streamID,
		"live":      live,
	})
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
