package models

import (
	"regexp"
	"time"
)

// MaxIDLen bounds event and correlation ids. Their columns are VARCHAR(36),
// the width of a UUID.
const MaxIDLen = 36

// RoutingKeyPrefix is prepended to the event name to build the AMQP routing key.
const RoutingKeyPrefix = "track."

var eventNamePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// ValidEventName reports whether name can be used as a routing key segment.
func ValidEventName(name string) bool {
	return len(name) <= 100 && eventNamePattern.MatchString(name)
}

// RoutingKey returns the routing key for an event name.
func RoutingKey(name string) string {
	return RoutingKeyPrefix + name
}

// TrackEvent is a telemetry event about a user, as carried on the bus.
type TrackEvent struct {
	EventID       string         `json:"event_id"`
	CorrelationID string         `json:"correlation_id"`
	Name          string         `json:"name"`
	Timestamp     time.Time      `json:"timestamp"`
	User          EventTrackUser `json:"user"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// TrackRequest is the request body for tracking an event.
type TrackRequest struct {
	Event      string         `json:"event" binding:"required" example:"lesson.completed"`
	User       EventTrackUser `json:"user" binding:"required"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TrackResponse is returned once an event has been accepted for dispatch.
type TrackResponse struct {
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
}
