package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"trackersync/internal/analytics"
	"trackersync/internal/crm"
	"trackersync/internal/tracker"
	"trackersync/internal/webhook"
	"trackersync/pkg/config"
	"trackersync/pkg/models"
)

var knownTrackers = []string{crm.Name, analytics.Name, webhook.Name}

// buildTrackers returns the trackers enabled by cfg. With no explicit list the
// webhook tracker runs only when a URL is configured.
func buildTrackers(cfg *config.Config, db *sql.DB, log zerolog.Logger) ([]tracker.Tracker[models.TrackEvent], error) {
	explicit := cfg.Tracker.Trackers()
	for _, name := range explicit {
		if !isKnown(name) {
			return nil, fmt.Errorf("unknown tracker %q", name)
		}
	}

	var out []tracker.Tracker[models.TrackEvent]
	for _, name := range knownTrackers {
		if !cfg.Tracker.TrackerEnabled(name) {
			continue
		}
		switch name {
		case crm.Name:
			out = append(out, crm.NewTracker(db, log))
		case analytics.Name:
			out = append(out, analytics.NewTracker(db, log))
		case webhook.Name:
			if cfg.Webhook.URL == "" && len(explicit) == 0 {
				log.Info().Msg("webhook tracker disabled, WEBHOOK_URL not set")
				continue
			}
			wh, err := webhook.NewTracker(webhook.Config{
				URL:       cfg.Webhook.URL,
				Token:     cfg.Webhook.Token,
				Timeout:   cfg.Webhook.Timeout,
				RateLimit: cfg.Webhook.RateLimit,
			}, log)
			if err != nil {
				return nil, err
			}
			out = append(out, wh)
		}
	}
	return out, nil
}

func isKnown(name string) bool {
	for _, k := range knownTrackers {
		if k == name {
			return true
		}
	}
	return false
}
