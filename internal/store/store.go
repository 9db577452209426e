// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/focusflow/internal/errs"
	"github.com/verte-zerg/focusflow/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for sessions, samples, events and preferences.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reading_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			document_name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			reading_mode TEXT NOT NULL,
			words_read INTEGER NOT NULL DEFAULT 0,
			regression_count INTEGER NOT NULL DEFAULT 0,
			focus_score REAL,
			dropped_samples INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS gaze_samples (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES reading_sessions(id),
			ts_ms INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			word_index INTEGER,
			line_number INTEGER,
			is_regression INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS focus_events (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES reading_sessions(id),
			event_type TEXT NOT NULL,
			ts_ms INTEGER NOT NULL,
			confidence REAL NOT NULL,
			trigger_action TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT PRIMARY KEY,
			default_reading_mode TEXT NOT NULL,
			bionic_intensity INTEGER NOT NULL,
			rsvp_speed INTEGER NOT NULL,
			background_color TEXT NOT NULL,
			text_color TEXT NOT NULL,
			font_size INTEGER NOT NULL,
			font_family TEXT NOT NULL,
			focus_mask_enabled INTEGER NOT NULL,
			auto_mode_switch INTEGER NOT NULL,
			eye_tracking_enabled INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reading_sessions_user_start ON reading_sessions(user_id, start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_gaze_samples_session_ts ON gaze_samples(session_id, ts_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_events_session_ts ON focus_events(session_id, ts_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const sessionColumns = `id, user_id, document_name, start_time, end_time, duration_seconds,
	reading_mode, words_read, regression_count, focus_score, dropped_samples`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.ReadingSession, error) {
	var sess model.ReadingSession
	var start string
	var end sql.NullString
	var score sql.NullFloat64
	var mode string
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.DocumentName, &start, &end, &sess.DurationSeconds,
		&mode, &sess.WordsRead, &sess.RegressionCount, &score, &sess.DroppedSamples); err != nil {
		return model.ReadingSession{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return model.ReadingSession{}, err
	}
	sess.StartTime = parsed
	if end.Valid {
		ended, err := time.Parse(time.RFC3339Nano, end.String)
		if err != nil {
			return model.ReadingSession{}, err
		}
		sess.EndTime = &ended
	}
	if score.Valid {
		v := score.Float64
		sess.FocusScore = &v
	}
	sess.ReadingMode = model.ReadingMode(mode)
	return sess, nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (model.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM reading_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReadingSession{}, errs.New(errs.KindNotFound, "session %s not found", id)
	}
	if err != nil {
		return model.ReadingSession{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// SaveSession inserts or replaces a session.
func (s *Store) SaveSession(ctx context.Context, sess model.ReadingSession) error {
	return saveSession(ctx, s.db, sess)
}

func saveSession(ctx context.Context, x execer, sess model.ReadingSession) error {
	var end any
	if sess.EndTime != nil {
		end = sess.EndTime.UTC().Format(timeLayout)
	}
	var score any
	if sess.FocusScore != nil {
		score = *sess.FocusScore
	}
	_, err := x.ExecContext(ctx,
		`INSERT INTO reading_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			end_time = excluded.end_time,
			duration_seconds = excluded.duration_seconds,
			reading_mode = excluded.reading_mode,
			words_read = excluded.words_read,
			regression_count = excluded.regression_count,
			focus_score = excluded.focus_score,
			dropped_samples = excluded.dropped_samples`,
		sess.ID,
		sess.UserID,
		sess.DocumentName,
		sess.StartTime.UTC().Format(timeLayout),
		end,
		sess.DurationSeconds,
		string(sess.ReadingMode),
		sess.WordsRead,
		sess.RegressionCount,
		score,
		sess.DroppedSamples,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// ListSessionsByUser returns a user's sessions, newest first.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string, opts model.ListOptions) ([]model.ReadingSession, error) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if opts.Since != nil {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT %s FROM reading_sessions WHERE %s ORDER BY start_time DESC, id`,
		sessionColumns, strings.Join(clauses, " AND "))
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.ReadingSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CommitBatch persists one ingested batch atomically: the scored samples,
// the events they produced and the updated session row. It returns the ids
// assigned to events, in order.
func (s *Store) CommitBatch(ctx context.Context, samples []model.GazeSample, events []model.FocusEvent, sess model.ReadingSession) (ids []int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if err = insertGazeSamples(ctx, tx, samples); err != nil {
		return nil, err
	}
	ids = make([]int64, len(events))
	for i, ev := range events {
		if ids[i], err = appendFocusEvent(ctx, tx, ev); err != nil {
			return nil, err
		}
	}
	if err = saveSession(ctx, tx, sess); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendGazeSamples writes samples in one transaction.
func (s *Store) AppendGazeSamples(ctx context.Context, samples []model.GazeSample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = insertGazeSamples(ctx, tx, samples); err != nil {
		return err
	}
	return tx.Commit()
}

func insertGazeSamples(ctx context.Context, tx *sql.Tx, samples []model.GazeSample) error {
	if len(samples) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO gaze_samples (session_id, ts_ms, x, y, word_index, line_number, is_regression)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, g := range samples {
		if _, err := stmt.ExecContext(ctx, g.SessionID, g.Timestamp, g.X, g.Y,
			nullInt(g.WordIndex), nullInt(g.LineNumber), g.IsRegression); err != nil {
			return fmt.Errorf("append gaze sample: %w", err)
		}
	}
	return nil
}

// ListGazeSamples returns a session's samples in commit order.
func (s *Store) ListGazeSamples(ctx context.Context, sessionID string) ([]model.GazeSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, ts_ms, x, y, word_index, line_number, is_regression
		 FROM gaze_samples WHERE session_id = ? ORDER BY ts_ms, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list gaze samples: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var samples []model.GazeSample
	for rows.Next() {
		var g model.GazeSample
		var word, line sql.NullInt64
		if err := rows.Scan(&g.SessionID, &g.Timestamp, &g.X, &g.Y, &word, &line, &g.IsRegression); err != nil {
			return nil, err
		}
		g.WordIndex = intPtr(word)
		g.LineNumber = intPtr(line)
		samples = append(samples, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// AppendFocusEvent stores an event and returns its id.
func (s *Store) AppendFocusEvent(ctx context.Context, ev model.FocusEvent) (int64, error) {
	return appendFocusEvent(ctx, s.db, ev)
}

func appendFocusEvent(ctx context.Context, x execer, ev model.FocusEvent) (int64, error) {
	res, err := x.ExecContext(ctx,
		`INSERT INTO focus_events (session_id, event_type, ts_ms, confidence, trigger_action)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, string(ev.Type), ev.Timestamp, ev.Confidence, ev.TriggerAction)
	if err != nil {
		return 0, fmt.Errorf("append focus event: %w", err)
	}
	return res.LastInsertId()
}

// ListFocusEvents returns a session's events in timestamp order.
func (s *Store) ListFocusEvents(ctx context.Context, sessionID string) ([]model.FocusEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, ts_ms, confidence, trigger_action
		 FROM focus_events WHERE session_id = ? ORDER BY ts_ms, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list focus events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var events []model.FocusEvent
	for rows.Next() {
		var ev model.FocusEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &typ, &ev.Timestamp, &ev.Confidence, &ev.TriggerAction); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetUserPreferences loads a user's preferences.
func (s *Store) GetUserPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	var p model.UserPreferences
	var mode string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, default_reading_mode, bionic_intensity, rsvp_speed, background_color, text_color,
			font_size, font_family, focus_mask_enabled, auto_mode_switch, eye_tracking_enabled
		 FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&p.UserID, &mode, &p.BionicIntensity, &p.RSVPSpeed, &p.BackgroundColor, &p.TextColor,
			&p.FontSize, &p.FontFamily, &p.FocusMaskEnabled, &p.AutoModeSwitch, &p.EyeTrackingEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserPreferences{}, errs.New(errs.KindNotFound, "preferences for %s not found", userID)
	}
	if err != nil {
		return model.UserPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	p.DefaultReadingMode = model.ReadingMode(mode)
	return p, nil
}

// SaveUserPreferences inserts or replaces a user's preferences.
func (s *Store) SaveUserPreferences(ctx context.Context, p model.UserPreferences) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, default_reading_mode, bionic_intensity, rsvp_speed,
			background_color, text_color, font_size, font_family, focus_mask_enabled, auto_mode_switch, eye_tracking_enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			default_reading_mode = excluded.default_reading_mode,
			bionic_intensity = excluded.bionic_intensity,
			rsvp_speed = excluded.rsvp_speed,
			background_color = excluded.background_color,
			text_color = excluded.text_color,
			font_size = excluded.font_size,
			font_family = excluded.font_family,
			focus_mask_enabled = excluded.focus_mask_enabled,
			auto_mode_switch = excluded.auto_mode_switch,
			eye_tracking_enabled = excluded.eye_tracking_enabled`,
		p.UserID, string(p.DefaultReadingMode), p.BionicIntensity, p.RSVPSpeed, p.BackgroundColor, p.TextColor,
		p.FontSize, p.FontFamily, p.FocusMaskEnabled, p.AutoModeSwitch, p.EyeTrackingEnabled)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
