package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trackersync/pkg/metrics"
	"trackersync/pkg/middleware"
	"trackersync/pkg/models"
)

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, correlationID string) error
}

// TrackHandler accepts track events and publishes them to the bus.
type TrackHandler struct {
	Publisher EventPublisher
	now       func() time.Time
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(pub EventPublisher) *TrackHandler {
	return &TrackHandler{Publisher: pub, now: time.Now}
}

// Track godoc
// @Summary      Track an event for a user
// @Description  Validates the event, stamps it with an event id and publishes it for asynchronous dispatch to the trackers
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        request  body      models.TrackRequest   true  "Track request"
// @Success      202      {object}  models.TrackResponse
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /track [post]
func (h *TrackHandler) Track(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log := middleware.Logger(c)

	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidEventName(req.Event) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event name"})
		return
	}

	event := models.TrackEvent{
		EventID:       uuid.New().String(),
		CorrelationID: correlationID,
		Name:          req.Event,
		Timestamp:     h.now().UTC(),
		User:          req.User,
		Properties:    req.Properties,
	}

	body, err := json.Marshal(event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unencodable properties"})
		return
	}

	if err := h.Publisher.Publish(c.Request.Context(), models.RoutingKey(event.Name), body, correlationID); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("event_id", event.EventID).Str("event", event.Name).Msg("failed to publish event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish event"})
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()

	log.Info().
		Str("event_id", event.EventID).
		Str("event", event.Name).
		Int64("user_id", event.User.ID).
		Str("user_type", string(event.User.Type)).
		Msg("event accepted")
	c.JSON(http.StatusAccepted, models.TrackResponse{EventID: event.EventID, CorrelationID: correlationID})
}
