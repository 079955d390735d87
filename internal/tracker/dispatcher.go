// Package tracker dispatches analytics payloads to pluggable tracking backends.
//
// A Dispatcher resolves a lightweight user reference into a fully typed user,
// applies the tracker's own suppression policy and the test-user policy, then
// hands the payload to the tracker. Every failure is contained: Dispatch logs
// it once and reports it in the Result, it never returns an error or panics.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trackersync/pkg/logger"
	"trackersync/pkg/metrics"
	"trackersync/pkg/models"
	"trackersync/pkg/users"
)

const tracerName = "trackersync/internal/tracker"

// TestUsersWarning is logged on every dispatch while test-user tracking is on.
const TestUsersWarning = `Tracker events dispatching is enabled for test users. Remove "ENABLE_TRACKER_FOR_TEST_USERS=true" from env vars to disable this warning`

// Tracker delivers a payload for a resolved user to one backend.
type Tracker[P any] interface {
	Name() string
	Deliver(ctx context.Context, user users.User, payload P) error
}

// Suppressor is implemented by trackers that decide to skip some users.
// Returning true suppresses the dispatch without error.
type Suppressor interface {
	Suppress(ctx context.Context, guard Guard, user users.User) (bool, error)
}

// Config holds dispatch policy read from the environment once at startup.
type Config struct {
	// EnableForTestUsers delivers events for test accounts too.
	EnableForTestUsers bool
}

// Outcome is how a dispatch settled.
type Outcome int

const (
	Delivered Outcome = iota + 1
	Suppressed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Suppressed:
		return "suppressed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports a settled dispatch. Err is set only when Outcome is Failed,
// and has already been logged.
type Result struct {
	Outcome Outcome
	Err     error
}

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	log    zerolog.Logger
	tracer trace.Tracer
}

// WithLogger sets the logger. Defaults to logger.Get().
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// Dispatcher binds one Tracker to a user Lookup. It is safe for concurrent use;
// dispatches share no mutable state.
type Dispatcher[P any] struct {
	name    string
	tracker Tracker[P]
	lookup  users.Lookup
	cfg     Config
	log     zerolog.Logger
	tracer  trace.Tracer
	guard   Guard
}

// New creates a Dispatcher for t.
func New[P any](t Tracker[P], lookup users.Lookup, cfg Config, opts ...Option) *Dispatcher[P] {
	o := options{log: logger.Get()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	name := t.Name()
	log := o.log.With().Str("tracker", name).Logger()

	return &Dispatcher[P]{
		name:    name,
		tracker: t,
		lookup:  lookup,
		cfg:     cfg,
		log:     log,
		tracer:  o.tracer,
		guard:   NewGuard(name, o.log),
	}
}

// Name returns the tracker name.
func (d *Dispatcher[P]) Name() string { return d.name }

// Dispatch resolves ref, applies suppression and delivers payload.
func (d *Dispatcher[P]) Dispatch(ctx context.Context, ref models.EventTrackUser, payload P) Result {
	start := time.Now()

	ctx, span := d.tracer.Start(ctx, "tracker.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tracker.name", d.name),
			attribute.Int64("user.id", ref.ID),
			attribute.String("user.type", string(ref.Type)),
		),
	)
	defer span.End()

	log := d.logger(ctx)
	res := d.run(ctx, log, ref, payload)

	span.SetAttributes(attribute.String("tracker.outcome", res.Outcome.String()))
	if res.Err != nil {
		d.logFailure(log, ref, res.Err)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	metrics.DispatchTotal.WithLabelValues(d.name, res.Outcome.String()).Inc()
	metrics.DispatchDuration.WithLabelValues(d.name).Observe(time.Since(start).Seconds())

	return res
}

func (d *Dispatcher[P]) run(ctx context.Context, log *zerolog.Logger, ref models.EventTrackUser, payload P) Result {
	user, err := d.resolve(ctx, ref)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	if s, ok := d.tracker.(Suppressor); ok {
		var skip bool
		err := protect(func() error {
			var err error
			skip, err = s.Suppress(ctx, d.guard, user)
			return err
		})
		if err != nil {
			return Result{Outcome: Failed, Err: &SuppressionHookError{Tracker: d.name, UserID: ref.ID, Err: err}}
		}
		if skip {
			return Result{Outcome: Suppressed}
		}
	}

	if d.preventForTestUser(log, user) {
		return Result{Outcome: Suppressed}
	}

	log.Info().
		Int64("user_id", user.UserID()).
		Str("user_type", string(user.Type())).
		Msgf("Tracker %s called for user %d", d.name, user.UserID())

	if err := protect(func() error { return d.tracker.Deliver(ctx, user, payload) }); err != nil {
		return Result{Outcome: Failed, Err: &DeliveryError{Tracker: d.name, UserID: ref.ID, Err: err}}
	}
	return Result{Outcome: Delivered}
}

// resolve maps the reference onto a typed user. A user that is missing, of an
// unknown type, or whose id differs from the reference is not found.
func (d *Dispatcher[P]) resolve(ctx context.Context, ref models.EventTrackUser) (users.User, error) {
	var user users.User
	err := protect(func() error {
		var err error
		user, err = users.Resolve(ctx, d.lookup, ref.Type, ref.ID)
		return err
	})

	switch {
	case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrUnknownType):
		return nil, &UserNotFoundError{Tracker: d.name, UserID: ref.ID, UserType: ref.Type}
	case err != nil:
		return nil, fmt.Errorf("tracker %s: resolve %s user %d: %w", d.name, ref.Type, ref.ID, err)
	}
	return user, nil
}

func (d *Dispatcher[P]) preventForTestUser(log *zerolog.Logger, user users.User) bool {
	if d.cfg.EnableForTestUsers {
		log.Warn().Msg(TestUsersWarning)
		return false
	}
	if !user.IsTestUser() {
		return false
	}
	log.Debug().
		Int64("user_id", user.UserID()).
		Msgf("%s skipping dispatching for test user %d", d.name, user.UserID())
	return true
}

// logger returns the logger carried by ctx, if any, tagged with the tracker
// name. Hosts attach event fields there with zerolog's WithContext.
func (d *Dispatcher[P]) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		tagged := l.With().Str("tracker", d.name).Logger()
		return &tagged
	}
	return &d.log
}

func (d *Dispatcher[P]) logFailure(log *zerolog.Logger, ref models.EventTrackUser, err error) {
	ev := log.Error().
		Err(err).
		Int64("user_id", ref.ID).
		Str("user_type", string(ref.Type))

	var pe *PanicError
	if errors.As(err, &pe) {
		ev = ev.Str("stack", pe.Stack)
	}
	ev.Msgf("Tracker %s failed for user %d", d.name, ref.ID)
}

// protect runs fn and converts a panic into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}
