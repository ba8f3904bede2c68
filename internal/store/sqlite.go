package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	// ErrUnknownVariant is returned when a variant is not declared by the
	// experiment.
	ErrUnknownVariant = errors.New("unknown variant")
)

type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    property_id TEXT NOT NULL DEFAULT '',
    variants TEXT NOT NULL,
    weights TEXT,
    conversion_goal TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'running',
    winner_variant TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_state ON experiments(state);

CREATE TABLE IF NOT EXISTS visits (
    id TEXT PRIMARY KEY,
    experiment TEXT NOT NULL,
    variant TEXT NOT NULL,
    session_id TEXT NOT NULL,
    property_id TEXT NOT NULL DEFAULT '',
    device_type TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    viewed_hero INTEGER NOT NULL DEFAULT 0,
    viewed_offer INTEGER NOT NULL DEFAULT 0,
    viewed_benefits INTEGER NOT NULL DEFAULT 0,
    viewed_process INTEGER NOT NULL DEFAULT 0,
    viewed_form INTEGER NOT NULL DEFAULT 0,
    submitted_form INTEGER NOT NULL DEFAULT 0,
    time_on_page REAL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment) REFERENCES experiments(name)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_session ON visits(experiment, session_id);
CREATE INDEX IF NOT EXISTS idx_visits_variant ON visits(experiment, variant);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    experiment TEXT NOT NULL,
    variant TEXT NOT NULL,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    metadata TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON events(experiment, event_type);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const busyTimeout = 5 * time.Second

const experimentColumns = `id, name, property_id, variants, weights, conversion_goal, state, winner_variant, created_at, updated_at`

const visitColumns = `id, experiment, variant, session_id, property_id, device_type, source,
	viewed_hero, viewed_offer, viewed_benefits, viewed_process, viewed_form, submitted_form,
	time_on_page, created_at, updated_at`

// Open opens or creates the database at dbPath. All queries share a single
// connection, and writers wait up to busyTimeout for a lock held by another
// process.
func Open(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to connect to database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to apply schema")
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error) {
	variantsJSON, err := json.Marshal(exp.Variants)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal variants")
	}

	var weightsJSON []byte
	if len(exp.Weights) > 0 {
		weightsJSON, err = json.Marshal(exp.Weights)
		if err != nil {
			return nil, eris.Wrap(err, "failed to marshal weights")
		}
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, property_id, variants, weights, conversion_goal, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'running', ?, ?)`,
		exp.Name, exp.PropertyID, string(variantsJSON), nullableString(weightsJSON), exp.ConversionGoal, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrExists
		}
		return nil, eris.Wrap(err, "failed to insert experiment")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "failed to get last insert id")
	}

	created := *exp
	created.ID = id
	created.State = StateRunning
	created.WinnerVariant = ""
	created.CreatedAt = time.Unix(now, 0)
	created.UpdatedAt = time.Unix(now, 0)
	return &created, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, name string) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name)

	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get experiment %s", name)
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list experiments")
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan experiment")
		}
		experiments = append(experiments, exp)
	}

	return experiments, rows.Err()
}

func (s *SQLiteStore) UpdateExperimentState(ctx context.Context, name string, state ExperimentState) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET state = ?, updated_at = ? WHERE name = ?`,
		string(state), time.Now().Unix(), name,
	)
	if err != nil {
		return eris.Wrap(err, "failed to update experiment state")
	}
	return requireAffected(result)
}

// SetWinner records the winning variant and completes the experiment. The
// variant must be one the experiment declares.
func (s *SQLiteStore) SetWinner(ctx context.Context, name, variant string) error {
	exp, err := s.GetExperiment(ctx, name)
	if err != nil {
		return err
	}
	if !exp.HasVariant(variant) {
		return ErrUnknownVariant
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET state = ?, winner_variant = ?, updated_at = ? WHERE name = ?`,
		string(StateCompleted), variant, time.Now().Unix(), name,
	)
	if err != nil {
		return eris.Wrap(err, "failed to set winner")
	}
	return requireAffected(result)
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE experiment = ?`, name); err != nil {
		return eris.Wrap(err, "failed to delete events")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM visits WHERE experiment = ?`, name); err != nil {
		return eris.Wrap(err, "failed to delete visits")
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return eris.Wrap(err, "failed to delete experiment")
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "failed to commit delete")
}

// RecordVisit inserts a visit or merges it into the existing visit for the
// same session. Funnel flags only ever turn on, time on page keeps the
// largest reported value, and variant, device and source keep their first
// value. The stored visit is returned.
func (s *SQLiteStore) RecordVisit(ctx context.Context, v *Visit) (*Visit, error) {
	id := v.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(experiment, session_id) DO UPDATE SET
			viewed_hero = visits.viewed_hero OR excluded.viewed_hero,
			viewed_offer = visits.viewed_offer OR excluded.viewed_offer,
			viewed_benefits = visits.viewed_benefits OR excluded.viewed_benefits,
			viewed_process = visits.viewed_process OR excluded.viewed_process,
			viewed_form = visits.viewed_form OR excluded.viewed_form,
			submitted_form = visits.submitted_form OR excluded.submitted_form,
			time_on_page = CASE
				WHEN excluded.time_on_page IS NULL THEN visits.time_on_page
				WHEN visits.time_on_page IS NULL THEN excluded.time_on_page
				ELSE MAX(visits.time_on_page, excluded.time_on_page)
			END,
			updated_at = excluded.updated_at`,
		id, v.Experiment, v.Variant, v.SessionID, v.PropertyID, v.DeviceType, v.Source,
		v.ViewedHero, v.ViewedOffer, v.ViewedBenefits, v.ViewedProcess, v.ViewedForm, v.SubmittedForm,
		nullableFloat(v.TimeOnPage), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to record visit")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE experiment = ? AND session_id = ?`,
		v.Experiment, v.SessionID)
	stored, err := scanVisit(row)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read recorded visit")
	}
	return stored, nil
}

// ImportVisits inserts visits in a single transaction. Every imported visit
// gets a new id, so rows exported from another experiment or database never
// collide on id; visits whose session is already recorded for the
// experiment are skipped. It returns the number of visits inserted.
func (s *SQLiteStore) ImportVisits(ctx context.Context, visits []Visit) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO visits (`+visitColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prepare import")
	}
	defer stmt.Close()

	inserted := 0
	for i := range visits {
		v := &visits[i]
		created := v.CreatedAt.Unix()
		if v.CreatedAt.IsZero() {
			created = time.Now().Unix()
		}

		result, err := stmt.ExecContext(ctx,
			uuid.NewString(), v.Experiment, v.Variant, v.SessionID, v.PropertyID, v.DeviceType, v.Source,
			v.ViewedHero, v.ViewedOffer, v.ViewedBenefits, v.ViewedProcess, v.ViewedForm, v.SubmittedForm,
			nullableFloat(v.TimeOnPage), created, created,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "failed to import visit %d", i+1)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "failed to get rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "failed to commit import")
	}
	return inserted, nil
}

// ListVisits returns the visits of an experiment in arrival order. An empty
// variant returns visits for every variant.
func (s *SQLiteStore) ListVisits(ctx context.Context, experiment, variant string) ([]Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE experiment = ?`
	args := []any{experiment}
	if variant != "" {
		query += ` AND variant = ?`
		args = append(args, variant)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list visits")
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan visit")
		}
		visits = append(visits, *v)
	}

	return visits, rows.Err()
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *Event) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return eris.Wrap(err, "failed to marshal event metadata")
		}
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, experiment, variant, session_id, event_type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.Experiment, e.Variant, e.SessionID, string(e.Type), nullableString(metadata), time.Now().Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "failed to record event")
	}

	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, experiment string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment, variant, session_id, event_type, metadata, created_at
		 FROM events WHERE experiment = ? ORDER BY created_at DESC, rowid DESC`,
		experiment,
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType string
		var metadata sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Experiment, &e.Variant, &e.SessionID, &eventType, &metadata, &createdAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan event")
		}
		e.Type = EventType(eventType)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, eris.Wrap(err, "failed to unmarshal event metadata")
			}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (s *SQLiteStore) EventCounts(ctx context.Context, experiment string) ([]EventCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, event_type, COUNT(DISTINCT session_id)
		FROM events
		WHERE experiment = ?
		GROUP BY variant, event_type
		ORDER BY variant, event_type
	`, experiment)
	if err != nil {
		return nil, eris.Wrap(err, "failed to count events")
	}
	defer rows.Close()

	var counts []EventCount
	for rows.Next() {
		var c EventCount
		var eventType string
		if err := rows.Scan(&c.Variant, &eventType, &c.Count); err != nil {
			return nil, eris.Wrap(err, "failed to scan event count")
		}
		c.Type = EventType(eventType)
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", eris.Wrapf(err, "failed to get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrapf(err, "failed to set setting %s", key)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (*Experiment, error) {
	var exp Experiment
	var variantsJSON string
	var weightsJSON, winner sql.NullString
	var state string
	var createdAt, updatedAt int64

	err := row.Scan(&exp.ID, &exp.Name, &exp.PropertyID, &variantsJSON, &weightsJSON,
		&exp.ConversionGoal, &state, &winner, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(variantsJSON), &exp.Variants); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal variants")
	}
	if weightsJSON.Valid && weightsJSON.String != "" {
		if err := json.Unmarshal([]byte(weightsJSON.String), &exp.Weights); err != nil {
			return nil, eris.Wrap(err, "failed to unmarshal weights")
		}
	}

	exp.State = ExperimentState(state)
	exp.WinnerVariant = winner.String
	exp.CreatedAt = time.Unix(createdAt, 0)
	exp.UpdatedAt = time.Unix(updatedAt, 0)
	return &exp, nil
}

func scanVisit(row scanner) (*Visit, error) {
	var v Visit
	var timeOnPage sql.NullFloat64
	var createdAt, updatedAt int64

	err := row.Scan(&v.ID, &v.Experiment, &v.Variant, &v.SessionID, &v.PropertyID, &v.DeviceType, &v.Source,
		&v.ViewedHero, &v.ViewedOffer, &v.ViewedBenefits, &v.ViewedProcess, &v.ViewedForm, &v.SubmittedForm,
		&timeOnPage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if timeOnPage.Valid {
		t := timeOnPage.Float64
		v.TimeOnPage = &t
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
