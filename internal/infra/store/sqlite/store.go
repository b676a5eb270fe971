// Package sqlite persists units, locations, events and report jobs in a single
// SQLite file. Rows carry their filter columns next to a JSON payload.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra"
	"bloodbank-ops/internal/infra/converter"
	"bloodbank-ops/internal/usecase"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS units (
	id          TEXT PRIMARY KEY,
	hospital_id TEXT NOT NULL,
	location_id TEXT NOT NULL DEFAULT '',
	blood_type  TEXT NOT NULL,
	status      TEXT NOT NULL,
	payload     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS units_location_idx ON units (location_id);
CREATE INDEX IF NOT EXISTS units_hospital_idx ON units (hospital_id);
CREATE TABLE IF NOT EXISTS locations (
	id      TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	hospital_id TEXT NOT NULL,
	occurred_at INTEGER NOT NULL,
	payload     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_hospital_time_idx ON events (hospital_id, occurred_at);
CREATE TABLE IF NOT EXISTS report_jobs (
	hospital_id TEXT PRIMARY KEY,
	payload     BLOB NOT NULL
);`

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs the repository statements on whatever conn hands out.
type queries struct {
	logger *slog.Logger
	conn   func() (dbtx, error)
}

type Store struct {
	queries

	mu sync.RWMutex
	db *sql.DB
}

func New(logger *slog.Logger) *Store {
	s := &Store{}
	s.queries = queries{logger: logger, conn: func() (dbtx, error) { return s.handle() }}
	return s
}

// NewFromDB wraps an already opened handle. The schema is not created.
func NewFromDB(db *sql.DB, logger *slog.Logger) *Store {
	s := New(logger)
	s.db = db
	return s
}

// Connect opens (or reopens) the database file at path and applies the schema.
func (s *Store) Connect(ctx context.Context, path string) error {
	if path == "" {
		path = "bloodbank.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "create sqlite directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "ping sqlite", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "apply sqlite schema", err)
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return s.wrap("ping sqlite", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// RunInTx runs fn inside one transaction. The pool holds a single
// connection, so fn must only go through the repositories it is handed.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Repositories) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
	}()

	if err := fn(ctx, &queries{logger: s.logger, conn: func() (dbtx, error) { return tx, nil }}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit transaction", err)
	}
	return nil
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, infra.WrapRepoErr(s.logger, infra.KindUnavailable, "sqlite store not connected", nil)
	}
	return s.db, nil
}

// wrap classifies a database/sql error.
func (q *queries) wrap(msg string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, msg, err)
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return infra.WrapRepoErr(q.logger, infra.KindUnavailable, msg, err)
	default:
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, msg, err)
	}
}

func (q *queries) SaveUnit(ctx context.Context, u *unit.Unit) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	rec := converter.UnitToRecord(u)
	payload, err := json.Marshal(rec)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode unit", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO units (id, hospital_id, location_id, blood_type, status, payload)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.HospitalID, rec.LocationID, rec.BloodType, rec.Status, payload)
	if err != nil {
		return q.wrap("insert unit", err)
	}
	return q.expectRow(res, infra.KindConflict, "unit "+rec.ID+" already exists")
}

func (q *queries) UpdateUnit(ctx context.Context, u *unit.Unit) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	rec := converter.UnitToRecord(u)
	payload, err := json.Marshal(rec)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode unit", err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE units SET hospital_id = ?, location_id = ?, blood_type = ?, status = ?, payload = ? WHERE id = ?`,
		rec.HospitalID, rec.LocationID, rec.BloodType, rec.Status, payload, rec.ID)
	if err != nil {
		return q.wrap("update unit", err)
	}
	return q.expectRow(res, infra.KindNotFound, "unit "+rec.ID+" not found")
}

func (q *queries) DeleteUnit(ctx context.Context, id string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, id)
	if err != nil {
		return q.wrap("delete unit", err)
	}
	return q.expectRow(res, infra.KindNotFound, "unit "+id+" not found")
}

func (q *queries) GetUnit(ctx context.Context, id string) (*unit.Unit, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, `SELECT payload FROM units WHERE id = ?`, id).Scan(&payload); err != nil {
		return nil, q.wrap("unit "+id+" not found", err)
	}
	var rec converter.UnitRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode unit", err)
	}
	return converter.UnitFromRecord(rec), nil
}

func (q *queries) ListUnits(ctx context.Context, filter unit.Filter) ([]*unit.Unit, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	query := `SELECT payload FROM units WHERE 1 = 1`
	var args []any
	if filter.LocationID != "" {
		query += ` AND location_id = ?`
		args = append(args, filter.LocationID)
	}
	if filter.HospitalID != "" {
		query += ` AND hospital_id = ?`
		args = append(args, filter.HospitalID)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, q.wrap("list units", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*unit.Unit
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, q.wrap("scan unit", err)
		}
		var rec converter.UnitRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode unit", err)
		}
		if u := converter.UnitFromRecord(rec); filter.Matches(u) {
			out = append(out, u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, q.wrap("list units", err)
	}
	return out, nil
}

func (q *queries) CountUnitsInLocation(ctx context.Context, locationID string) (int, error) {
	db, err := q.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units WHERE location_id = ?`, locationID).Scan(&n); err != nil {
		return 0, q.wrap("count units", err)
	}
	return n, nil
}

func (q *queries) CreateLocation(ctx context.Context, l *storage.Location) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	rec := converter.LocationToRecord(l)
	payload, err := json.Marshal(rec)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode location", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO locations (id, payload) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`, rec.ID, payload)
	if err != nil {
		return q.wrap("insert location", err)
	}
	return q.expectRow(res, infra.KindConflict, "location "+rec.ID+" already exists")
}

func (q *queries) UpdateLocation(ctx context.Context, l *storage.Location) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	rec := converter.LocationToRecord(l)
	payload, err := json.Marshal(rec)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode location", err)
	}
	res, err := db.ExecContext(ctx, `UPDATE locations SET payload = ? WHERE id = ?`, payload, rec.ID)
	if err != nil {
		return q.wrap("update location", err)
	}
	return q.expectRow(res, infra.KindNotFound, "location "+rec.ID+" not found")
}

func (q *queries) DeleteLocation(ctx context.Context, id string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return q.wrap("delete location", err)
	}
	return q.expectRow(res, infra.KindNotFound, "location "+id+" not found")
}

func (q *queries) GetLocation(ctx context.Context, id string) (*storage.Location, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, `SELECT payload FROM locations WHERE id = ?`, id).Scan(&payload); err != nil {
		return nil, q.wrap("location "+id+" not found", err)
	}
	var rec converter.LocationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode location", err)
	}
	return converter.LocationFromRecord(rec), nil
}

func (q *queries) ListLocations(ctx context.Context) ([]*storage.Location, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM locations ORDER BY id`)
	if err != nil {
		return nil, q.wrap("list locations", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Location
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, q.wrap("scan location", err)
		}
		var rec converter.LocationRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode location", err)
		}
		out = append(out, converter.LocationFromRecord(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, q.wrap("list locations", err)
	}
	return out, nil
}

func (q *queries) AppendEvent(ctx context.Context, e event.Event) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode event", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO events (id, hospital_id, occurred_at, payload) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		e.ID, e.HospitalID, e.OccurredAt.UnixNano(), payload)
	if err != nil {
		return q.wrap("append event", err)
	}
	return q.expectRow(res, infra.KindConflict, "event "+e.ID+" already exists")
}

func (q *queries) ListEvents(ctx context.Context, q event.Query) ([]event.Event, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	query := `SELECT payload FROM events WHERE 1 = 1`
	var args []any
	if q.HospitalID != "" {
		query += ` AND hospital_id = ?`
		args = append(args, q.HospitalID)
	}
	if !q.From.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		query += ` AND occurred_at < ?`
		args = append(args, q.To.UnixNano())
	}
	query += ` ORDER BY occurred_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, q.wrap("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var all []event.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, q.wrap("scan event", err)
		}
		var e event.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode event", err)
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, q.wrap("list events", err)
	}
	return event.Filter(all, q), nil
}

func (q *queries) SaveJob(ctx context.Context, j report.Job) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(j)
	if err != nil {
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, "encode report job", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO report_jobs (hospital_id, payload) VALUES (?, ?)
		 ON CONFLICT (hospital_id) DO UPDATE SET payload = excluded.payload`,
		j.HospitalID, payload); err != nil {
		return q.wrap("save report job", err)
	}
	return nil
}

func (q *queries) DeleteJob(ctx context.Context, hospitalID string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM report_jobs WHERE hospital_id = ?`, hospitalID)
	if err != nil {
		return q.wrap("delete report job", err)
	}
	return q.expectRow(res, infra.KindNotFound, "report job for "+hospitalID+" not found")
}

func (q *queries) GetJob(ctx context.Context, hospitalID string) (report.Job, error) {
	db, err := q.conn()
	if err != nil {
		return report.Job{}, err
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, `SELECT payload FROM report_jobs WHERE hospital_id = ?`, hospitalID).Scan(&payload); err != nil {
		return report.Job{}, q.wrap("report job for "+hospitalID+" not found", err)
	}
	var j report.Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return report.Job{}, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode report job", err)
	}
	return j, nil
}

func (q *queries) ListJobs(ctx context.Context) ([]report.Job, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM report_jobs ORDER BY hospital_id`)
	if err != nil {
		return nil, q.wrap("list report jobs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []report.Job
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, q.wrap("scan report job", err)
		}
		var j report.Job
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, infra.WrapRepoErr(q.logger, infra.KindDBFailure, "decode report job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, q.wrap("list report jobs", err)
	}
	return out, nil
}

func (q *queries) expectRow(res sql.Result, kind infra.RepositoryErrorKind, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return q.wrap("rows affected", err)
	}
	if n == 0 {
		return infra.WrapRepoErr(q.logger, kind, msg, nil)
	}
	return nil
}
