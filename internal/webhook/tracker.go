// Package webhook forwards track events to an external marketing endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trackersync/pkg/metrics"
	"trackersync/pkg/models"
	"trackersync/pkg/users"
)

// Name identifies the webhook tracker.
const Name = "webhook"

const (
	defaultTimeout = 10 * time.Second
	envelopeType   = "trackersync.track"
	schemaVersion  = "1"
	userAgent      = "trackersync/v1"
)

// Config holds the webhook endpoint settings.
type Config struct {
	URL   string
	Token string
	// Timeout bounds a single request. Zero means 10s.
	Timeout time.Duration
	// RateLimit is the maximum requests per second. Zero or less disables limiting.
	RateLimit float64
}

// Envelope is the JSON body POSTed to the endpoint.
type Envelope struct {
	Type          string         `json:"type"`
	SchemaVersion string         `json:"schemaVersion"`
	Timestamp     string         `json:"timestamp"`
	EventID       string         `json:"event_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Event         string         `json:"event"`
	User          EnvelopeUser   `json:"user"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// EnvelopeUser is the resolved user as sent to the endpoint.
type EnvelopeUser struct {
	ID        int64           `json:"id"`
	Type      models.UserType `json:"type"`
	FirstName string          `json:"firstname"`
	LastName  string          `json:"lastname"`
	Email     string          `json:"email,omitempty"`
	Managed   bool            `json:"managed"`
}

// Tracker POSTs one envelope per event. It makes a single attempt; redelivery
// is left to the bus.
type Tracker struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	url        string
	token      string
	log        zerolog.Logger
}

// NewTracker validates cfg and creates a Tracker.
func NewTracker(cfg Config, log zerolog.Logger) (*Tracker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = max(1, int(cfg.RateLimit))
	}

	t := &Tracker{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		url:        cfg.URL,
		token:      cfg.Token,
		log:        log.With().Str("component", "webhook").Logger(),
	}
	t.log.Info().
		Str("url", RedactURL(cfg.URL)).
		Float64("rate_limit", cfg.RateLimit).
		Msg("webhook tracker configured")
	return t, nil
}

func (t *Tracker) Name() string { return Name }

// Deliver sends the event. Any non-2xx response is an error.
func (t *Tracker) Deliver(ctx context.Context, user users.User, event models.TrackEvent) error {
	if err := t.limiter.Wait(ctx); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(newEnvelope(user, event))
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if event.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", event.CorrelationID)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("post to %s: %w", RedactURL(t.url), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.WebhookRequestsTotal.WithLabelValues("rejected").Inc()
		return &StatusError{StatusCode: resp.StatusCode}
	}

	metrics.WebhookRequestsTotal.WithLabelValues("success").Inc()
	t.log.Debug().Str("event_id", event.EventID).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.StatusCode)
}

func newEnvelope(user users.User, event models.TrackEvent) Envelope {
	p := user.Details()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Envelope{
		Type:          envelopeType,
		SchemaVersion: schemaVersion,
		Timestamp:     ts.UTC().Format(time.RFC3339),
		EventID:       event.EventID,
		CorrelationID: event.CorrelationID,
		Event:         event.Name,
		User: EnvelopeUser{
			ID:        p.ID,
			Type:      user.Type(),
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Managed:   user.IsManaged(),
		},
		Properties: event.Properties,
	}
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
