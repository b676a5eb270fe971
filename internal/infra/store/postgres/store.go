package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bloodbank-ops/internal/domain/event"
	"bloodbank-ops/internal/domain/report"
	"bloodbank-ops/internal/domain/storage"
	"bloodbank-ops/internal/domain/unit"
	"bloodbank-ops/internal/infra"
	"bloodbank-ops/internal/infra/converter"
	"bloodbank-ops/internal/usecase"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

const pgErrUniqueViolation = "23505"

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries runs the repository statements on whatever conn hands out.
type queries struct {
	logger *slog.Logger
	conn   func() (dbtx, error)
}

type Store struct {
	queries

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func New(logger *slog.Logger) *Store {
	s := &Store{}
	s.queries = queries{logger: logger, conn: func() (dbtx, error) { return s.handle() }}
	return s
}

// Connect opens a fresh pool for dsn, replacing any previous one, and makes
// sure the schema exists.
func (s *Store) Connect(ctx context.Context, dsn string) error {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindDBFailure, "parse postgres dsn", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "open postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "ping postgres", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return s.wrap("apply postgres schema", err)
	}

	s.mu.Lock()
	old := s.pool
	s.pool = pool
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.handle()
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindUnavailable, "ping postgres", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// RunInTx runs fn inside one postgres transaction. A failure from fn or from
// commit rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Repositories) error) (err error) {
	pool, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return s.wrap("begin transaction", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
	}()

	if err = fn(ctx, &queries{logger: s.logger, conn: func() (dbtx, error) { return tx, nil }}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return s.wrap("commit transaction", err)
	}
	return nil
}

func (s *Store) handle() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, infra.WrapRepoErr(s.logger, infra.KindUnavailable, "postgres store not connected", nil)
	}
	return s.pool, nil
}

// wrap maps pgx errors: no rows is NOT_FOUND, a unique violation CONFLICT,
// any other server error DB_FAILURE, and everything else (network, pool,
// context) UNAVAILABLE.
func (q *queries) wrap(msg string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, msg, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgErrUniqueViolation {
			return infra.WrapRepoErr(q.logger, infra.KindConflict, msg, err)
		}
		return infra.WrapRepoErr(q.logger, infra.KindDBFailure, msg, err)
	}
	return infra.WrapRepoErr(q.logger, infra.KindUnavailable, msg, err)
}

func (q *queries) SaveUnit(ctx context.Context, u *unit.Unit) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	r := converter.UnitToRecord(u)
	_, err = db.Exec(ctx, `
		INSERT INTO blood_units (id, blood_type, component, donor_id, hospital_id, location_id, donated_at, expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.BloodType, r.Component, r.DonorID, r.HospitalID, r.LocationID, r.DonatedAt, r.ExpiresAt, r.Status, r.CreatedAt)
	if err != nil {
		return q.wrap("insert unit "+r.ID, err)
	}
	return nil
}

func (q *queries) UpdateUnit(ctx context.Context, u *unit.Unit) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	r := converter.UnitToRecord(u)
	tag, err := db.Exec(ctx, `
		UPDATE blood_units SET location_id = $2, status = $3, hospital_id = $4
		WHERE id = $1`,
		r.ID, r.LocationID, r.Status, r.HospitalID)
	if err != nil {
		return q.wrap("update unit "+r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, "unit "+r.ID+" not found", nil)
	}
	return nil
}

func (q *queries) DeleteUnit(ctx context.Context, id string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `DELETE FROM blood_units WHERE id = $1`, id)
	if err != nil {
		return q.wrap("delete unit "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, "unit "+id+" not found", nil)
	}
	return nil
}

const unitColumns = `id, blood_type, component, donor_id, hospital_id, location_id, donated_at, expires_at, status, created_at`

func scanUnit(row pgx.Row) (*unit.Unit, error) {
	var r converter.UnitRecord
	if err := row.Scan(&r.ID, &r.BloodType, &r.Component, &r.DonorID, &r.HospitalID, &r.LocationID,
		&r.DonatedAt, &r.ExpiresAt, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return converter.UnitFromRecord(r), nil
}

func (q *queries) GetUnit(ctx context.Context, id string) (*unit.Unit, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	u, err := scanUnit(db.QueryRow(ctx, `SELECT `+unitColumns+` FROM blood_units WHERE id = $1`, id))
	if err != nil {
		return nil, q.wrap("unit "+id+" not found", err)
	}
	return u, nil
}

func (q *queries) ListUnits(ctx context.Context, filter unit.Filter) ([]*unit.Unit, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `
		SELECT `+unitColumns+` FROM blood_units
		WHERE ($1 = '' OR location_id = $1)
		  AND ($2 = '' OR hospital_id = $2)
		  AND ($3 = '' OR blood_type = $3)
		ORDER BY id`,
		filter.LocationID, filter.HospitalID, string(filter.BloodType))
	if err != nil {
		return nil, q.wrap("list units", err)
	}
	defer rows.Close()

	var out []*unit.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, q.wrap("scan unit", err)
		}
		if filter.Matches(u) {
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
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM blood_units WHERE location_id = $1`, locationID).Scan(&n); err != nil {
		return 0, q.wrap("count units", err)
	}
	return n, nil
}

func (q *queries) CreateLocation(ctx context.Context, l *storage.Location) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	r := converter.LocationToRecord(l)
	_, err = db.Exec(ctx, `
		INSERT INTO storage_locations (id, name, kind, target_temperature, current_temperature, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Name, r.Kind, r.TargetTemperature, r.CurrentTemperature, r.Capacity, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return q.wrap("insert location "+r.ID, err)
	}
	return nil
}

func (q *queries) UpdateLocation(ctx context.Context, l *storage.Location) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	r := converter.LocationToRecord(l)
	tag, err := db.Exec(ctx, `
		UPDATE storage_locations
		SET name = $2, current_temperature = $3, capacity = $4, updated_at = $5
		WHERE id = $1`,
		r.ID, r.Name, r.CurrentTemperature, r.Capacity, r.UpdatedAt)
	if err != nil {
		return q.wrap("update location "+r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, "location "+r.ID+" not found", nil)
	}
	return nil
}

func (q *queries) DeleteLocation(ctx context.Context, id string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `DELETE FROM storage_locations WHERE id = $1`, id)
	if err != nil {
		return q.wrap("delete location "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, "location "+id+" not found", nil)
	}
	return nil
}

const locationColumns = `id, name, kind, target_temperature, current_temperature, capacity, created_at, updated_at`

func scanLocation(row pgx.Row) (*storage.Location, error) {
	var r converter.LocationRecord
	if err := row.Scan(&r.ID, &r.Name, &r.Kind, &r.TargetTemperature, &r.CurrentTemperature, &r.Capacity,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return converter.LocationFromRecord(r), nil
}

func (q *queries) GetLocation(ctx context.Context, id string) (*storage.Location, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	l, err := scanLocation(db.QueryRow(ctx, `SELECT `+locationColumns+` FROM storage_locations WHERE id = $1`, id))
	if err != nil {
		return nil, q.wrap("location "+id+" not found", err)
	}
	return l, nil
}

func (q *queries) ListLocations(ctx context.Context) ([]*storage.Location, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT `+locationColumns+` FROM storage_locations ORDER BY id`)
	if err != nil {
		return nil, q.wrap("list locations", err)
	}
	defer rows.Close()

	var out []*storage.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, q.wrap("scan location", err)
		}
		out = append(out, l)
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
	_, err = db.Exec(ctx, `
		INSERT INTO historical_events (id, kind, hospital_id, request_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Kind), e.HospitalID, e.RequestID, e.OccurredAt, payload)
	if err != nil {
		return q.wrap("append event "+e.ID, err)
	}
	return nil
}

func (q *queries) ListEvents(ctx context.Context, q event.Query) ([]event.Event, error) {
	db, err := q.conn()
	if err != nil {
		return nil, err
	}
	var from, to *time.Time
	if !q.From.IsZero() {
		from = &q.From
	}
	if !q.To.IsZero() {
		to = &q.To
	}
	rows, err := db.Query(ctx, `
		SELECT payload FROM historical_events
		WHERE ($1 = '' OR hospital_id = $1)
		  AND ($2 = '' OR request_id = $2)
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		  AND ($4::timestamptz IS NULL OR occurred_at < $4)
		ORDER BY occurred_at, id`,
		q.HospitalID, q.RequestID, from, to)
	if err != nil {
		return nil, q.wrap("list events", err)
	}
	defer rows.Close()

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
	var last *time.Time
	if !j.LastGeneratedAt.IsZero() {
		last = &j.LastGeneratedAt
	}
	_, err = db.Exec(ctx, `
		INSERT INTO report_jobs (hospital_id, cadence, last_generated_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hospital_id) DO UPDATE
		SET cadence = EXCLUDED.cadence, last_generated_at = EXCLUDED.last_generated_at, payload = EXCLUDED.payload`,
		j.HospitalID, string(j.Cadence), last, payload)
	if err != nil {
		return q.wrap("save report job "+j.HospitalID, err)
	}
	return nil
}

func (q *queries) DeleteJob(ctx context.Context, hospitalID string) error {
	db, err := q.conn()
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `DELETE FROM report_jobs WHERE hospital_id = $1`, hospitalID)
	if err != nil {
		return q.wrap("delete report job "+hospitalID, err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr(q.logger, infra.KindNotFound, "report job for "+hospitalID+" not found", nil)
	}
	return nil
}

func (q *queries) GetJob(ctx context.Context, hospitalID string) (report.Job, error) {
	db, err := q.conn()
	if err != nil {
		return report.Job{}, err
	}
	var payload []byte
	if err := db.QueryRow(ctx, `SELECT payload FROM report_jobs WHERE hospital_id = $1`, hospitalID).Scan(&payload); err != nil {
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
	rows, err := db.Query(ctx, `SELECT payload FROM report_jobs ORDER BY hospital_id`)
	if err != nil {
		return nil, q.wrap("list report jobs", err)
	}
	defer rows.Close()

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
