package tracker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"trackersync/pkg/metrics"
	"trackersync/pkg/models"
	"trackersync/pkg/users"
)

type signup struct {
	Plan string
}

// stubLookup serves users from maps and counts calls per finder.
type stubLookup struct {
	mu              sync.Mutex
	accountManagers map[int64]*users.AccountManager
	managers        map[int64]*users.Manager
	regular         map[int64]*users.RegularUser
	err             error
	panicMsg        string
	calls           map[string]int
}

func (s *stubLookup) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.err
}

func (s *stubLookup) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubLookup) FindAccountManager(_ context.Context, id int64) (*users.AccountManager, error) {
	if err := s.record("account_manager"); err != nil {
		return nil, err
	}
	return s.accountManagers[id], nil
}

func (s *stubLookup) FindManager(_ context.Context, id int64) (*users.Manager, error) {
	if err := s.record("manager"); err != nil {
		return nil, err
	}
	return s.managers[id], nil
}

func (s *stubLookup) FindRegularUserWithManagers(_ context.Context, id int64) (*users.RegularUser, error) {
	if err := s.record("regular_user"); err != nil {
		return nil, err
	}
	return s.regular[id], nil
}

type delivery struct {
	user    users.User
	payload signup
}

// recordingTracker captures deliveries.
type recordingTracker struct {
	name     string
	err      error
	panicMsg string

	mu    sync.Mutex
	calls []delivery
}

func (t *recordingTracker) Name() string { return t.name }

func (t *recordingTracker) Deliver(_ context.Context, user users.User, payload signup) error {
	if t.panicMsg != "" {
		panic(t.panicMsg)
	}
	t.mu.Lock()
	t.calls = append(t.calls, delivery{user: user, payload: payload})
	t.mu.Unlock()
	return t.err
}

func (t *recordingTracker) delivered() []delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]delivery(nil), t.calls...)
}

// policyTracker adds a Suppress hook to recordingTracker.
type policyTracker struct {
	*recordingTracker
	suppress func(g Guard, user users.User) (bool, error)
}

func (t *policyTracker) Suppress(_ context.Context, g Guard, user users.User) (bool, error) {
	return t.suppress(g, user)
}

func newLookup() *stubLookup {
	return &stubLookup{
		accountManagers: map[int64]*users.AccountManager{
			3: {Profile: users.Profile{ID: 3, FirstName: "Ada", LastName: "Staff"}},
		},
		managers: map[int64]*users.Manager{
			7:  {Profile: users.Profile{ID: 7, FirstName: "Mona", LastName: "Manager"}},
			70: {Profile: users.Profile{ID: 70, FirstName: "QA", LastName: "Manager", TestAccount: true}},
		},
		regular: map[int64]*users.RegularUser{
			5: {Profile: users.Profile{ID: 5, FirstName: "Rita"}},
			9: {
				Profile:  users.Profile{ID: 9, FirstName: "Max"},
				Managers: []users.ManagerLink{{AccountManagerID: 3, StartedAt: time.Now()}},
			},
		},
	}
}

type logEntry map[string]any

func parseLogs(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var e logEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("failed to decode log line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func byLevel(entries []logEntry, level string) []logEntry {
	var out []logEntry
	for _, e := range entries {
		if e["level"] == level {
			out = append(out, e)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, tr Tracker[signup], lookup users.Lookup, cfg Config) (*Dispatcher[signup], *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	log := zerolog.New(buf).Level(zerolog.DebugLevel)
	return New[signup](tr, lookup, cfg, WithLogger(log)), buf
}

func TestDispatch_UnknownUserType(t *testing.T) {
	lookup := newLookup()
	tr := &recordingTracker{name: "crm"}
	d, buf := newTestDispatcher(t, tr, lookup, Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 42, Type: "superuser"}, signup{})

	if res.Outcome != Failed {
		t.Fatalf("expected outcome failed, got %s", res.Outcome)
	}
	var nf *UserNotFoundError
	if !errors.As(res.Err, &nf) {
		t.Fatalf("expected UserNotFoundError, got %v", res.Err)
	}
	if nf.UserID != 42 || nf.Tracker != "crm" {
		t.Errorf("unexpected error fields: %+v", nf)
	}
	if len(tr.delivered()) != 0 {
		t.Error("expected no delivery")
	}
	for _, finder := range []string{"account_manager", "manager", "regular_user"} {
		if n := lookup.count(finder); n != 0 {
			t.Errorf("expected no %s lookup, got %d", finder, n)
		}
	}

	errs := byLevel(parseLogs(t, buf), "error")
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error log, got %d", len(errs))
	}
	if errs[0]["user_id"] != float64(42) {
		t.Errorf("expected user_id 42 in error log, got %v", errs[0]["user_id"])
	}
	if !strings.Contains(errs[0]["error"].(string), "42") {
		t.Errorf("expected error text to mention 42, got %q", errs[0]["error"])
	}
}

func TestDispatch_UserNotFound(t *testing.T) {
	tests := []struct {
		name string
		ref  models.EventTrackUser
		err  error
	}{
		{"missing account manager", models.EventTrackUser{ID: 100, Type: models.UserTypeAccountManager}, nil},
		{"missing manager", models.EventTrackUser{ID: 100, Type: models.UserTypeManager}, nil},
		{"missing regular user", models.EventTrackUser{ID: 100, Type: models.UserTypeRegular}, nil},
		{"lookup reports ErrNotFound", models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, users.ErrNotFound},
		{"type tag does not match stored user", models.EventTrackUser{ID: 7, Type: models.UserTypeAccountManager}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := newLookup()
			lookup.err = tt.err
			tr := &recordingTracker{name: "crm"}
			d, buf := newTestDispatcher(t, tr, lookup, Config{})

			res := d.Dispatch(context.Background(), tt.ref, signup{})

			var nf *UserNotFoundError
			if !errors.As(res.Err, &nf) {
				t.Fatalf("expected UserNotFoundError, got %v", res.Err)
			}
			if nf.UserType != tt.ref.Type {
				t.Errorf("expected type %s, got %s", tt.ref.Type, nf.UserType)
			}
			if len(tr.delivered()) != 0 {
				t.Error("expected no delivery")
			}
			if n := len(byLevel(parseLogs(t, buf), "error")); n != 1 {
				t.Errorf("expected 1 error log, got %d", n)
			}
		})
	}
}

func TestDispatch_LookupFailure(t *testing.T) {
	lookup := newLookup()
	lookup.err = errors.New("connection refused")
	d, buf := newTestDispatcher(t, &recordingTracker{name: "crm"}, lookup, Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

	if res.Outcome != Failed {
		t.Fatalf("expected outcome failed, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, lookup.err) {
		t.Errorf("expected wrapped lookup error, got %v", res.Err)
	}
	var nf *UserNotFoundError
	if errors.As(res.Err, &nf) {
		t.Error("a failing lookup must not be reported as not found")
	}
	if n := len(byLevel(parseLogs(t, buf), "error")); n != 1 {
		t.Errorf("expected 1 error log, got %d", n)
	}
}

func TestDispatch_LookupPanic(t *testing.T) {
	lookup := newLookup()
	lookup.panicMsg = "nil map"
	d, buf := newTestDispatcher(t, &recordingTracker{name: "crm"}, lookup, Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 7, Type: models.UserTypeManager}, signup{})

	var pe *PanicError
	if !errors.As(res.Err, &pe) {
		t.Fatalf("expected PanicError, got %v", res.Err)
	}
	errs := byLevel(parseLogs(t, buf), "error")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error log, got %d", len(errs))
	}
	if _, ok := errs[0]["stack"]; !ok {
		t.Error("expected stack field on panic log")
	}
}

func TestDispatch_ResolvesByTypeTag(t *testing.T) {
	tests := []struct {
		ref    models.EventTrackUser
		finder string
	}{
		{models.EventTrackUser{ID: 3, Type: models.UserTypeAccountManager}, "account_manager"},
		{models.EventTrackUser{ID: 7, Type: models.UserTypeManager}, "manager"},
		{models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, "regular_user"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ref.Type), func(t *testing.T) {
			lookup := newLookup()
			tr := &recordingTracker{name: "crm"}
			d, _ := newTestDispatcher(t, tr, lookup, Config{})

			res := d.Dispatch(context.Background(), tt.ref, signup{Plan: "pro"})
			if res.Outcome != Delivered {
				t.Fatalf("expected delivered, got %s (%v)", res.Outcome, res.Err)
			}

			total := 0
			for _, f := range []string{"account_manager", "manager", "regular_user"} {
				total += lookup.count(f)
			}
			if total != 1 || lookup.count(tt.finder) != 1 {
				t.Errorf("expected exactly one %s lookup, got %v", tt.finder, lookup.calls)
			}

			got := tr.delivered()
			if len(got) != 1 {
				t.Fatalf("expected 1 delivery, got %d", len(got))
			}
			if got[0].user.Type() != tt.ref.Type || got[0].user.UserID() != tt.ref.ID {
				t.Errorf("delivered wrong user: %s %d", got[0].user.Type(), got[0].user.UserID())
			}
		})
	}
}

func TestDispatch_ManagerDelivered(t *testing.T) {
	lookup := newLookup()
	tr := &recordingTracker{name: "crm"}
	d, buf := newTestDispatcher(t, tr, lookup, Config{})

	payload := signup{Plan: "team"}
	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 7, Type: models.UserTypeManager}, payload)

	if res.Outcome != Delivered || res.Err != nil {
		t.Fatalf("expected delivered without error, got %s %v", res.Outcome, res.Err)
	}
	got := tr.delivered()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].user != users.User(lookup.managers[7]) {
		t.Error("expected the resolved manager to be delivered")
	}
	if got[0].payload != payload {
		t.Errorf("expected payload %+v, got %+v", payload, got[0].payload)
	}

	entries := parseLogs(t, buf)
	if n := len(byLevel(entries, "error")); n != 0 {
		t.Errorf("expected no error logs, got %d", n)
	}
	infos := byLevel(entries, "info")
	if len(infos) != 1 || infos[0]["message"] != "Tracker crm called for user 7" {
		t.Errorf("expected call log, got %v", infos)
	}
}

func TestDispatch_TestUserSuppressed(t *testing.T) {
	tr := &recordingTracker{name: "crm"}
	d, buf := newTestDispatcher(t, tr, newLookup(), Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 70, Type: models.UserTypeManager}, signup{})

	if res.Outcome != Suppressed || res.Err != nil {
		t.Fatalf("expected suppressed without error, got %s %v", res.Outcome, res.Err)
	}
	if len(tr.delivered()) != 0 {
		t.Error("expected no delivery for test user")
	}
	if n := len(byLevel(parseLogs(t, buf), "error")); n != 0 {
		t.Errorf("expected no error logs, got %d", n)
	}
}

func TestDispatch_TestUsersEnabled(t *testing.T) {
	tr := &recordingTracker{name: "crm"}
	d, buf := newTestDispatcher(t, tr, newLookup(), Config{EnableForTestUsers: true})

	ref := models.EventTrackUser{ID: 70, Type: models.UserTypeManager}
	for i := 0; i < 2; i++ {
		if res := d.Dispatch(context.Background(), ref, signup{}); res.Outcome != Delivered {
			t.Fatalf("expected delivered, got %s (%v)", res.Outcome, res.Err)
		}
	}

	if n := len(tr.delivered()); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	warns := byLevel(parseLogs(t, buf), "warn")
	if len(warns) != 2 {
		t.Fatalf("expected one warning per dispatch, got %d", len(warns))
	}
	if warns[0]["message"] != TestUsersWarning {
		t.Errorf("unexpected warning %q", warns[0]["message"])
	}
}

func TestDispatch_DeliveryFailure(t *testing.T) {
	cause := errors.New("backend unavailable")
	tr := &recordingTracker{name: "crm", err: cause}
	d, buf := newTestDispatcher(t, tr, newLookup(), Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

	if res.Outcome != Failed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	var de *DeliveryError
	if !errors.As(res.Err, &de) {
		t.Fatalf("expected DeliveryError, got %v", res.Err)
	}
	if !errors.Is(res.Err, cause) || de.UserID != 5 {
		t.Errorf("unexpected delivery error: %+v", de)
	}
	if n := len(byLevel(parseLogs(t, buf), "error")); n != 1 {
		t.Errorf("expected 1 error log, got %d", n)
	}
}

func TestDispatch_LogsWithContextLogger(t *testing.T) {
	tr := &recordingTracker{name: "crm", err: errors.New("backend unavailable")}
	d, own := newTestDispatcher(t, tr, newLookup(), Config{})

	buf := &bytes.Buffer{}
	eventLog := zerolog.New(buf).With().
		Str("event_id", "evt-001").
		Str("correlation_id", "corr-001").
		Logger()
	ctx := eventLog.WithContext(context.Background())

	d.Dispatch(ctx, models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

	errs := byLevel(parseLogs(t, buf), "error")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error log on the context logger, got %d", len(errs))
	}
	for field, want := range map[string]string{"event_id": "evt-001", "correlation_id": "corr-001", "tracker": "crm"} {
		if errs[0][field] != want {
			t.Errorf("expected %s=%q, got %v", field, want, errs[0][field])
		}
	}
	if own.Len() != 0 {
		t.Errorf("expected no entries on the dispatcher logger, got %q", own.String())
	}
}

func TestDispatch_DeliveryPanic(t *testing.T) {
	tr := &recordingTracker{name: "crm", panicMsg: "boom"}
	d, buf := newTestDispatcher(t, tr, newLookup(), Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

	var de *DeliveryError
	if !errors.As(res.Err, &de) {
		t.Fatalf("expected DeliveryError, got %v", res.Err)
	}
	var pe *PanicError
	if !errors.As(res.Err, &pe) || pe.Value != "boom" {
		t.Errorf("expected wrapped panic value boom, got %v", res.Err)
	}
	if n := len(byLevel(parseLogs(t, buf), "error")); n != 1 {
		t.Errorf("expected 1 error log, got %d", n)
	}
}

func TestDispatch_ManagedRegularUserSuppressed(t *testing.T) {
	tr := &policyTracker{
		recordingTracker: &recordingTracker{name: "analytics"},
		suppress: func(g Guard, user users.User) (bool, error) {
			return g.PreventForManagedRegularUser(user), nil
		},
	}
	lookup := newLookup()
	d, buf := newTestDispatcher(t, tr, lookup, Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 9, Type: models.UserTypeRegular}, signup{})

	if res.Outcome != Suppressed || res.Err != nil {
		t.Fatalf("expected suppressed, got %s %v", res.Outcome, res.Err)
	}
	if lookup.count("regular_user") != 1 {
		t.Error("expected the regular user lookup with managers")
	}
	if len(tr.delivered()) != 0 {
		t.Error("expected no delivery for managed user")
	}
	if n := len(byLevel(parseLogs(t, buf), "error")); n != 0 {
		t.Errorf("expected no error logs, got %d", n)
	}

	// an unmanaged regular user passes the same policy
	res = d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})
	if res.Outcome != Delivered {
		t.Errorf("expected delivered for unmanaged user, got %s", res.Outcome)
	}
}

func TestDispatch_SuppressHookBeforeTestUserPolicy(t *testing.T) {
	var seen []int64
	tr := &policyTracker{
		recordingTracker: &recordingTracker{name: "crm"},
		suppress: func(g Guard, user users.User) (bool, error) {
			seen = append(seen, user.UserID())
			return g.PreventForNonRegularUser(user), nil
		},
	}
	d, _ := newTestDispatcher(t, tr, newLookup(), Config{})

	res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 70, Type: models.UserTypeManager}, signup{})

	if res.Outcome != Suppressed {
		t.Fatalf("expected suppressed, got %s", res.Outcome)
	}
	if len(seen) != 1 || seen[0] != 70 {
		t.Errorf("expected the hook to see user 70, got %v", seen)
	}
}

func TestDispatch_SuppressHookFailure(t *testing.T) {
	tests := []struct {
		name     string
		suppress func(Guard, users.User) (bool, error)
	}{
		{"returns error", func(Guard, users.User) (bool, error) { return false, errors.New("policy store down") }},
		{"panics", func(Guard, users.User) (bool, error) { panic("bad policy") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &policyTracker{recordingTracker: &recordingTracker{name: "crm"}, suppress: tt.suppress}
			d, buf := newTestDispatcher(t, tr, newLookup(), Config{})

			res := d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

			var se *SuppressionHookError
			if !errors.As(res.Err, &se) {
				t.Fatalf("expected SuppressionHookError, got %v", res.Err)
			}
			if len(tr.delivered()) != 0 {
				t.Error("expected no delivery")
			}
			if n := len(byLevel(parseLogs(t, buf), "error")); n != 1 {
				t.Errorf("expected 1 error log, got %d", n)
			}
		})
	}
}

func TestDispatch_Concurrent(t *testing.T) {
	tr := &recordingTracker{name: "crm"}
	d := New[signup](tr, newLookup(), Config{}, WithLogger(zerolog.Nop()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}
			if i%2 == 0 {
				ref = models.EventTrackUser{ID: 7, Type: models.UserTypeManager}
			}
			d.Dispatch(context.Background(), ref, signup{})
		}(i)
	}
	wg.Wait()

	if n := len(tr.delivered()); n != 50 {
		t.Errorf("expected 50 deliveries, got %d", n)
	}
}

func TestDispatch_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	tr := &recordingTracker{name: "crm", err: errors.New("down")}
	d := New[signup](tr, newLookup(), Config{}, WithLogger(zerolog.Nop()), WithTracer(tp.Tracer("test")))

	d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "tracker.dispatch" {
		t.Errorf("expected span tracker.dispatch, got %q", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status().Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["tracker.name"].AsString() != "crm" {
		t.Errorf("expected tracker.name crm, got %v", attrs["tracker.name"])
	}
	if attrs["user.id"].AsInt64() != 5 {
		t.Errorf("expected user.id 5, got %v", attrs["user.id"])
	}
	if attrs["tracker.outcome"].AsString() != "failed" {
		t.Errorf("expected outcome failed, got %v", attrs["tracker.outcome"])
	}
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	const name = "metrics-probe"
	tr := &recordingTracker{name: name}
	d := New[signup](tr, newLookup(), Config{}, WithLogger(zerolog.Nop()))

	delivered := metrics.DispatchTotal.WithLabelValues(name, "delivered")
	failed := metrics.DispatchTotal.WithLabelValues(name, "failed")
	beforeDelivered := testutil.ToFloat64(delivered)
	beforeFailed := testutil.ToFloat64(failed)

	d.Dispatch(context.Background(), models.EventTrackUser{ID: 5, Type: models.UserTypeRegular}, signup{})
	d.Dispatch(context.Background(), models.EventTrackUser{ID: 404, Type: models.UserTypeRegular}, signup{})

	if got := testutil.ToFloat64(delivered) - beforeDelivered; got != 1 {
		t.Errorf("expected 1 delivered, got %v", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Delivered:  "delivered",
		Suppressed: "suppressed",
		Failed:     "failed",
		Outcome(0): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
