// Package engine runs the focus pipeline for live reading sessions.
package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/verte-zerg/focusflow/internal/adaptive"
	"github.com/verte-zerg/focusflow/internal/errs"
	"github.com/verte-zerg/focusflow/internal/focus"
	"github.com/verte-zerg/focusflow/internal/model"
	"github.com/verte-zerg/focusflow/internal/stats"
	"github.com/verte-zerg/focusflow/internal/telemetry"
)

// Store is the durable storage the engine depends on.
type Store interface {
	GetSession(ctx context.Context, id string) (model.ReadingSession, error)
	SaveSession(ctx context.Context, sess model.ReadingSession) error
	ListSessionsByUser(ctx context.Context, userID string, opts model.ListOptions) ([]model.ReadingSession, error)
	// CommitBatch persists samples, events and the session row in one
	// transaction and returns the event ids.
	CommitBatch(ctx context.Context, samples []model.GazeSample, events []model.FocusEvent, sess model.ReadingSession) ([]int64, error)
	ListGazeSamples(ctx context.Context, sessionID string) ([]model.GazeSample, error)
	AppendFocusEvent(ctx context.Context, ev model.FocusEvent) (int64, error)
	ListFocusEvents(ctx context.Context, sessionID string) ([]model.FocusEvent, error)
	GetUserPreferences(ctx context.Context, userID string) (model.UserPreferences, error)
	SaveUserPreferences(ctx context.Context, prefs model.UserPreferences) error
}

// Config controls the engine.
type Config struct {
	Tuning         focus.Tuning
	IdleTTL        time.Duration
	WorkingSetSize int
	// Now is the wall clock used for session start and end times.
	Now func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Tuning:         focus.DefaultTuning(),
		IdleTTL:        15 * time.Minute,
		WorkingSetSize: 1024,
		Now:            time.Now,
	}
}

// IngestResult reports the outcome of one gaze batch.
type IngestResult struct {
	Accepted int
	Dropped  int
	Events   []model.FocusEvent
	Score    float64
	Mode     model.ReadingMode
}

// unit is the working state of one open session.
type unit struct {
	session model.ReadingSession
	state   *focus.State
}

// Engine serves the session operations.
type Engine struct {
	store    Store
	pipeline *focus.Pipeline
	units    *expirable.LRU[string, *unit]
	locks    *keyedMutex
	now      func() time.Time
	log      zerolog.Logger
	tracer   trace.Tracer
}

// New creates an engine over store.
func New(store Store, cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if cfg.WorkingSetSize <= 0 {
		return nil, errors.New("working set size must be > 0")
	}
	if cfg.IdleTTL <= 0 {
		return nil, errors.New("idle ttl must be > 0")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:    store,
		pipeline: focus.NewPipeline(cfg.Tuning),
		units:    expirable.NewLRU[string, *unit](cfg.WorkingSetSize, nil, cfg.IdleTTL),
		locks:    newKeyedMutex(),
		now:      cfg.Now,
		log:      log.With().Str("component", "engine").Logger(),
		tracer:   telemetry.Tracer(),
	}, nil
}

// StartSession opens a session. An empty mode selects the user's default.
func (e *Engine) StartSession(ctx context.Context, userID, documentName string, mode model.ReadingMode) (model.ReadingSession, error) {
	ctx, span := e.tracer.Start(ctx, "engine.StartSession")
	defer span.End()

	if userID == "" {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidValue, "user id is required"))
	}
	if mode == "" {
		prefs, err := e.preferences(ctx, userID)
		if err != nil {
			return model.ReadingSession{}, e.fail(span, err)
		}
		mode = prefs.DefaultReadingMode
	}
	if !mode.Valid() {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidValue, "unknown reading mode %q", mode))
	}

	sess := model.ReadingSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		DocumentName: documentName,
		StartTime:    e.now().UTC(),
		ReadingMode:  mode,
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	unlock := e.locks.Lock(sess.ID)
	defer unlock()
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return model.ReadingSession{}, e.fail(span, storeErr("save session", err))
	}
	e.units.Add(sess.ID, &unit{session: sess, state: e.pipeline.NewState()})
	e.trackWorkingSet()

	e.log.Info().
		Str("session", sess.ID).
		Str("user", userID).
		Str("mode", string(mode)).
		Msg("session started")
	return sess, nil
}

// EndSession closes a session. A nil override keeps the computed score.
func (e *Engine) EndSession(ctx context.Context, userID, sessionID string, override *float64) (model.ReadingSession, error) {
	ctx, span := e.tracer.Start(ctx, "engine.EndSession", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if override != nil && (math.IsNaN(*override) || *override < 0 || *override > 100) {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidValue, "focus score %v out of range [0, 100]", *override))
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	u, err := e.load(ctx, userID, sessionID)
	if err != nil {
		return model.ReadingSession{}, e.fail(span, err)
	}
	if u.session.Ended() {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidState, "session %s already ended", sessionID))
	}

	sess := u.session
	end := e.now().UTC()
	if end.Before(sess.StartTime) {
		end = sess.StartTime
	}
	sess.EndTime = &end
	sess.DurationSeconds = int(end.Sub(sess.StartTime) / time.Second)
	switch {
	case override != nil:
		score := *override
		sess.FocusScore = &score
	case u.state.Scored():
		score := u.state.Score()
		sess.FocusScore = &score
	}

	if err := e.store.SaveSession(ctx, sess); err != nil {
		e.invalidate(sessionID)
		return model.ReadingSession{}, e.fail(span, storeErr("save session", err))
	}
	e.invalidate(sessionID)

	ev := e.log.Info().
		Str("session", sessionID).
		Int("duration_s", sess.DurationSeconds).
		Int("regressions", sess.RegressionCount)
	if sess.FocusScore != nil {
		ev = ev.Float64("focus_score", *sess.FocusScore)
	}
	ev.Msg("session ended")
	return sess, nil
}

// IngestGaze runs a batch of samples through the session's pipeline.
func (e *Engine) IngestGaze(ctx context.Context, userID, sessionID string, samples []model.GazeSample) (IngestResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.IngestGaze", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("samples", len(samples)),
	))
	defer span.End()

	if err := validateSamples(samples); err != nil {
		return IngestResult{}, e.fail(span, err)
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	u, err := e.load(ctx, userID, sessionID)
	if err != nil {
		return IngestResult{}, e.fail(span, err)
	}
	if u.session.Ended() {
		return IngestResult{}, e.fail(span, errs.New(errs.KindInvalidState, "session %s has ended", sessionID))
	}
	if len(samples) == 0 {
		return IngestResult{Score: u.state.Score(), Mode: u.session.ReadingMode}, nil
	}

	prefs, err := e.preferences(ctx, userID)
	if err != nil {
		return IngestResult{}, e.fail(span, err)
	}

	batch := make([]model.GazeSample, len(samples))
	for i, g := range samples {
		g.SessionID = sessionID
		g.IsRegression = false
		batch[i] = g
	}

	st := u.state
	sess := u.session
	accepted, dropped := e.pipeline.Admit(st, batch)
	if dropped > 0 {
		telemetry.SamplesDropped.Add(float64(dropped))
		last, _ := st.LastTimestamp()
		e.log.Warn().
			Str("session", sessionID).
			Str("kind", string(errs.KindOutOfOrder)).
			Int("dropped", dropped).
			Int64("last_ts", last).
			Msg("dropped out-of-order gaze samples")
	}

	committed := make([]model.GazeSample, 0, len(accepted))
	var events []model.FocusEvent
	for _, g := range accepted {
		scored, ev := e.pipeline.Observe(st, g)
		committed = append(committed, scored)
		if ev == nil {
			continue
		}
		ev.SessionID = sessionID
		events = append(events, *ev)

		d, ok := adaptive.Decide(*ev, sess.ReadingMode, prefs)
		if !ok {
			continue
		}
		sess.ReadingMode = d.To
		events = append(events, d.Event(sessionID, ev.Timestamp))
		telemetry.ModeSwitches.WithLabelValues(string(d.To)).Inc()
		e.log.Info().
			Str("session", sessionID).
			Str("from", string(d.From)).
			Str("to", string(d.To)).
			Float64("confidence", d.Confidence).
			Msg("reading mode switched")
	}
	sess.WordsRead = st.WordsRead
	sess.RegressionCount = st.Regressions
	sess.DroppedSamples = st.Dropped

	ids, err := e.store.CommitBatch(ctx, committed, events, sess)
	if err != nil {
		e.invalidate(sessionID)
		return IngestResult{}, e.fail(span, storeErr("commit gaze batch", err))
	}
	for i := range events {
		events[i].ID = ids[i]
		telemetry.FocusEvents.WithLabelValues(string(events[i].Type)).Inc()
	}
	u.session = sess
	telemetry.SamplesAccepted.Add(float64(len(committed)))

	line, word, _ := st.Watermark()
	e.log.Debug().
		Str("session", sessionID).
		Int("accepted", len(committed)).
		Int("dropped", dropped).
		Int("events", len(events)).
		Float64("score", st.Score()).
		Int("mark_line", line).
		Int("mark_word", word).
		Msg("gaze batch ingested")

	return IngestResult{
		Accepted: len(committed),
		Dropped:  dropped,
		Events:   events,
		Score:    st.Score(),
		Mode:     sess.ReadingMode,
	}, nil
}

// Pause records a user pause. Pausing a paused session returns a nil event.
// The trigger is never stamped before the session's latest input, so a zero
// timestamp means "now" in the client's clock.
func (e *Engine) Pause(ctx context.Context, userID, sessionID string, ts int64) (*model.FocusEvent, error) {
	return e.trigger(ctx, "engine.Pause", userID, sessionID, ts, e.pipeline.Pause)
}

// Resume ends a pause. Resuming a running session returns a nil event.
func (e *Engine) Resume(ctx context.Context, userID, sessionID string, ts int64) (*model.FocusEvent, error) {
	return e.trigger(ctx, "engine.Resume", userID, sessionID, ts, e.pipeline.Resume)
}

func (e *Engine) trigger(ctx context.Context, name, userID, sessionID string, ts int64,
	apply func(*focus.State, int64) *model.FocusEvent) (*model.FocusEvent, error) {
	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	u, err := e.load(ctx, userID, sessionID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if u.session.Ended() {
		return nil, e.fail(span, errs.New(errs.KindInvalidState, "session %s has ended", sessionID))
	}
	ev := apply(u.state, ts)
	if ev == nil {
		return nil, nil
	}
	ev.SessionID = sessionID
	id, err := e.store.AppendFocusEvent(ctx, *ev)
	if err != nil {
		e.invalidate(sessionID)
		return nil, e.fail(span, storeErr("append focus event", err))
	}
	ev.ID = id
	telemetry.FocusEvents.WithLabelValues(string(ev.Type)).Inc()
	e.log.Info().Str("session", sessionID).Str("event", string(ev.Type)).Int64("ts", ev.Timestamp).Msg("session trigger")
	return ev, nil
}

// SwitchMode changes the reading mode on user request.
func (e *Engine) SwitchMode(ctx context.Context, userID, sessionID string, mode model.ReadingMode) (model.ReadingSession, error) {
	ctx, span := e.tracer.Start(ctx, "engine.SwitchMode", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if !mode.Valid() {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidValue, "unknown reading mode %q", mode))
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	u, err := e.load(ctx, userID, sessionID)
	if err != nil {
		return model.ReadingSession{}, e.fail(span, err)
	}
	if u.session.Ended() {
		return model.ReadingSession{}, e.fail(span, errs.New(errs.KindInvalidState, "session %s has ended", sessionID))
	}
	sess := u.session
	sess.ReadingMode = mode
	if err := e.store.SaveSession(ctx, sess); err != nil {
		e.invalidate(sessionID)
		return model.ReadingSession{}, e.fail(span, storeErr("save session", err))
	}
	u.session = sess
	return sess, nil
}

// ListEvents returns a session's focus events in order.
func (e *Engine) ListEvents(ctx context.Context, userID, sessionID string) ([]model.FocusEvent, error) {
	if _, err := e.owned(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	events, err := e.store.ListFocusEvents(ctx, sessionID)
	if err != nil {
		return nil, storeErr("list focus events", err)
	}
	return events, nil
}

// GetSession returns one of the user's sessions.
func (e *Engine) GetSession(ctx context.Context, userID, sessionID string) (model.ReadingSession, error) {
	return e.owned(ctx, userID, sessionID)
}

// GetAnalytics summarizes the user's sessions.
func (e *Engine) GetAnalytics(ctx context.Context, userID string, opts model.ListOptions) (model.AnalyticsSummary, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetAnalytics")
	defer span.End()

	if opts.Limit < 0 {
		return model.AnalyticsSummary{}, e.fail(span, errs.New(errs.KindInvalidValue, "limit must be >= 0"))
	}
	sessions, err := e.store.ListSessionsByUser(ctx, userID, opts)
	if err != nil {
		return model.AnalyticsSummary{}, e.fail(span, storeErr("list sessions", err))
	}
	return stats.Summarize(sessions), nil
}

// GetPreferences returns stored preferences; NotFound when none were saved.
func (e *Engine) GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs, err := e.store.GetUserPreferences(ctx, userID)
	if err != nil {
		return model.UserPreferences{}, storeErr("get preferences", err)
	}
	return prefs, nil
}

// SavePreferences validates and stores preferences.
func (e *Engine) SavePreferences(ctx context.Context, prefs model.UserPreferences) (model.UserPreferences, error) {
	if prefs.UserID == "" {
		return model.UserPreferences{}, errs.New(errs.KindInvalidValue, "user id is required")
	}
	if err := prefs.Validate(); err != nil {
		return model.UserPreferences{}, errs.Wrap(errs.KindInvalidValue, "invalid preferences", err)
	}
	if err := e.store.SaveUserPreferences(ctx, prefs); err != nil {
		return model.UserPreferences{}, storeErr("save preferences", err)
	}
	return prefs, nil
}

// load returns the working unit, rebuilding it from the store on a miss.
// A hit re-adds the unit so the idle timer restarts. Callers must hold the
// session lock.
func (e *Engine) load(ctx context.Context, userID, sessionID string) (*unit, error) {
	if u, ok := e.units.Get(sessionID); ok {
		if u.session.UserID != userID {
			return nil, notFound(sessionID)
		}
		e.units.Add(sessionID, u)
		return u, nil
	}

	sess, err := e.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return &unit{session: sess}, nil
	}

	samples, err := e.store.ListGazeSamples(ctx, sessionID)
	if err != nil {
		return nil, storeErr("list gaze samples", err)
	}
	events, err := e.store.ListFocusEvents(ctx, sessionID)
	if err != nil {
		return nil, storeErr("list focus events", err)
	}
	st := e.pipeline.Replay(samples, events)
	st.Dropped = sess.DroppedSamples

	u := &unit{session: sess, state: st}
	e.units.Add(sessionID, u)
	e.trackWorkingSet()
	telemetry.Replays.Inc()
	e.log.Debug().
		Str("session", sessionID).
		Int("samples", len(samples)).
		Int("events", len(events)).
		Msg("session state rebuilt")
	return u, nil
}

func (e *Engine) owned(ctx context.Context, userID, sessionID string) (model.ReadingSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.ReadingSession{}, storeErr("get session", err)
	}
	if sess.UserID != userID {
		return model.ReadingSession{}, notFound(sessionID)
	}
	return sess, nil
}

// preferences falls back to the defaults when the user has none stored.
func (e *Engine) preferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs, err := e.store.GetUserPreferences(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.DefaultPreferences(userID), nil
	}
	if err != nil {
		return model.UserPreferences{}, storeErr("get preferences", err)
	}
	return prefs, nil
}

func (e *Engine) invalidate(sessionID string) {
	e.units.Remove(sessionID)
	e.trackWorkingSet()
}

func (e *Engine) trackWorkingSet() {
	telemetry.WorkingSet.Set(float64(e.units.Len()))
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func validateSamples(samples []model.GazeSample) error {
	for i, g := range samples {
		if math.IsNaN(g.X) || math.IsNaN(g.Y) || math.IsInf(g.X, 0) || math.IsInf(g.Y, 0) {
			return errs.New(errs.KindInvalidValue, "sample %d has non-finite coordinates", i)
		}
		if g.Timestamp < 0 {
			return errs.New(errs.KindInvalidValue, "sample %d has negative timestamp", i)
		}
		if (g.WordIndex != nil && *g.WordIndex < 0) || (g.LineNumber != nil && *g.LineNumber < 0) {
			return errs.New(errs.KindInvalidValue, "sample %d has negative text position", i)
		}
	}
	return nil
}

func notFound(sessionID string) error {
	return errs.New(errs.KindNotFound, "session %s not found", sessionID)
}

// storeErr keeps coded errors and wraps anything else as internal.
func storeErr(op string, err error) error {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.KindInternal, op, err)
}
