// Package analytics aggregates daily event counts per user type.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trackersync/internal/tracker"
	"trackersync/pkg/models"
	"trackersync/pkg/postgres"
	"trackersync/pkg/users"
)

// Name identifies the analytics tracker.
const Name = "analytics"

const metricDateLayout = "2006-01-02"

// Tracker upserts analytics_metrics counters.
type Tracker struct {
	db   *sql.DB
	keys *postgres.IdempotencyStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewTracker creates an analytics tracker.
func NewTracker(db *sql.DB, log zerolog.Logger) *Tracker {
	return &Tracker{
		db:   db,
		keys: postgres.NewIdempotencyStore(db, Name),
		log:  log.With().Str("component", "analytics").Logger(),
		now:  time.Now,
	}
}

func (t *Tracker) Name() string { return Name }

// Suppress skips regular users while an account manager acts for them.
func (t *Tracker) Suppress(_ context.Context, g tracker.Guard, user users.User) (bool, error) {
	return g.PreventForManagedRegularUser(user), nil
}

// Deliver counts the event once per event id.
func (t *Tracker) Deliver(ctx context.Context, user users.User, event models.TrackEvent) error {
	seen, err := t.keys.Seen(ctx, event.EventID)
	if err != nil {
		return err
	}
	if seen {
		t.log.Info().Str("event_id", event.EventID).Msg("duplicate event ignored")
		return nil
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = t.now()
	}
	metricDate := ts.UTC().Format(metricDateLayout)
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO analytics_metrics (metric_date, event_name, user_type, event_count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (metric_date, event_name, user_type)
		 DO UPDATE SET event_count = analytics_metrics.event_count + 1`,
		metricDate, event.Name, string(user.Type()),
	)
	if err != nil {
		return fmt.Errorf("upsert analytics metrics: %w", err)
	}

	if err := t.keys.Mark(ctx, event.EventID); err != nil {
		t.log.Warn().Err(err).Str("event_id", event.EventID).Msg("failed to record idempotency key")
	}

	t.log.Debug().
		Str("date", metricDate).
		Str("event", event.Name).
		Str("correlation_id", event.CorrelationID).
		Msg("metrics updated")
	return nil
}
