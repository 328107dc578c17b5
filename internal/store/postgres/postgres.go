package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

// OpRefreshStreak is the outbox op enqueued by every moment mutation.
const OpRefreshStreak = "refresh_streak"

//go:embed schema.sql
var schemaSQL string

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the idempotent DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users             { return &users{db: s.db} }
func (s *pgStore) Moments() store.Moments         { return &moments{db: s.db} }
func (s *pgStore) Categories() store.Categories   { return &categories{db: s.db} }
func (s *pgStore) People() store.People           { return &people{db: s.db} }
func (s *pgStore) Reflections() store.Reflections { return &reflections{db: s.db} }
func (s *pgStore) Streaks() store.Streaks         { return &streaks{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Upsert(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, display_name, time_zone)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id) DO UPDATE SET display_name=EXCLUDED.display_name, time_zone=EXCLUDED.time_zone
        RETURNING creation_time
    `, m.UserID, m.DisplayName, m.TimeZone)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, display_name, time_zone, creation_time FROM users WHERE user_id=$1
    `, userID)
	if err := row.Scan(&out.UserID, &out.DisplayName, &out.TimeZone, &out.CreationTime); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// --- Moments ---
type moments struct{ db *sql.DB }

const momentColumns = `moment_id, user_id, happened_at, action, category_id, person_id, significance, tags, description, creation_time`

func (m *moments) Create(ctx context.Context, in *model.Moment) (*model.Moment, error) {
	out := *in
	if out.MomentID == "" {
		out.MomentID = uuid.New().String()
	}
	out.HappenedAt = out.HappenedAt.UTC()
	tags, err := json.Marshal(out.Tags)
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
        INSERT INTO moments (moment_id, user_id, happened_at, action, category_id, person_id, significance, tags, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING creation_time
    `, out.MomentID, out.UserID, out.HappenedAt, string(out.Action), out.CategoryID, out.PersonID, out.Significance, tags, out.Description)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	if err := writeOutbox(ctx, tx, OpRefreshStreak, out.UserID, map[string]interface{}{"momentId": out.MomentID}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *moments) Get(ctx context.Context, userID, momentID string) (*model.Moment, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+momentColumns+` FROM moments WHERE user_id=$1 AND moment_id=$2`, userID, momentID)
	out, err := scanMoment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (m *moments) Query(ctx context.Context, q model.MomentQuery) ([]*model.Moment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + momentColumns + ` FROM moments WHERE user_id=$1`)
	args := []interface{}{q.UserID}
	if q.From != nil {
		args = append(args, q.From.UTC())
		fmt.Fprintf(&sb, " AND happened_at >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, q.To.UTC())
		fmt.Fprintf(&sb, " AND happened_at <= $%d", len(args))
	}
	switch q.Action {
	case model.ActionOnlyGiven, model.ActionOnlyReceived:
		args = append(args, string(q.Action))
		fmt.Fprintf(&sb, " AND action = $%d", len(args))
	}
	if q.SignificanceOnly {
		sb.WriteString(" AND significance")
	}
	sb.WriteString(" ORDER BY happened_at ASC, moment_id ASC")

	rows, err := m.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Moment, 0)
	for rows.Next() {
		mm, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, rows.Err()
}

func (m *moments) Delete(ctx context.Context, userID, momentID string) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM moments WHERE user_id=$1 AND moment_id=$2`, userID, momentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	if err := writeOutbox(ctx, tx, OpRefreshStreak, userID, map[string]interface{}{"momentId": momentID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *moments) ReassignCategory(ctx context.Context, userID, fromID, toID string) (int64, error) {
	res, err := m.db.ExecContext(ctx, `UPDATE moments SET category_id=$1 WHERE user_id=$2 AND category_id=$3`, toID, userID, fromID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMoment(r scanner) (*model.Moment, error) {
	var out model.Moment
	var action string
	var tags []byte
	if err := r.Scan(&out.MomentID, &out.UserID, &out.HappenedAt, &action, &out.CategoryID, &out.PersonID,
		&out.Significance, &tags, &out.Description, &out.CreationTime); err != nil {
		return nil, err
	}
	out.Action = model.Action(action)
	out.HappenedAt = out.HappenedAt.UTC()
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &out.Tags)
	}
	return &out, nil
}

// --- Categories ---
type categories struct{ db *sql.DB }

func (c *categories) Create(ctx context.Context, in *model.Category) (*model.Category, error) {
	out := *in
	if out.CategoryID == "" {
		out.CategoryID = uuid.New().String()
	}
	row := c.db.QueryRowContext(ctx, `
        INSERT INTO categories (category_id, user_id, name, slug, sort_order)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING creation_time
    `, out.CategoryID, out.UserID, out.Name, out.Slug, out.SortOrder)
	if err := row.Scan(&out.CreationTime); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: category slug %q exists", model.ErrConflict, out.Slug)
		}
		return nil, err
	}
	return &out, nil
}

func (c *categories) List(ctx context.Context, userID string) ([]*model.Category, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT category_id, user_id, name, slug, sort_order, creation_time
        FROM categories WHERE user_id=$1 ORDER BY sort_order ASC, name ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Category, 0)
	for rows.Next() {
		var cc model.Category
		if err := rows.Scan(&cc.CategoryID, &cc.UserID, &cc.Name, &cc.Slug, &cc.SortOrder, &cc.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &cc)
	}
	return out, rows.Err()
}

// --- People ---
type people struct{ db *sql.DB }

func (p *people) Create(ctx context.Context, in *model.Person) (*model.Person, error) {
	out := *in
	if out.PersonID == "" {
		out.PersonID = uuid.New().String()
	}
	out.MergedInto = nil
	aliases, err := json.Marshal(out.Aliases)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `
        INSERT INTO people (person_id, user_id, display_name, aliases)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time
    `, out.PersonID, out.UserID, out.DisplayName, aliases)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *people) List(ctx context.Context, userID string) ([]*model.Person, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT person_id, user_id, display_name, aliases, merged_into, creation_time
        FROM people WHERE user_id=$1 ORDER BY display_name ASC, person_id ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Person, 0)
	for rows.Next() {
		var pp model.Person
		var aliases []byte
		if err := rows.Scan(&pp.PersonID, &pp.UserID, &pp.DisplayName, &aliases, &pp.MergedInto, &pp.CreationTime); err != nil {
			return nil, err
		}
		if len(aliases) > 0 {
			_ = json.Unmarshal(aliases, &pp.Aliases)
		}
		out = append(out, &pp)
	}
	return out, rows.Err()
}

func (p *people) Merge(ctx context.Context, userID, fromID, intoID string) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `
        SELECT 1 FROM people WHERE user_id=$1 AND person_id=$2 AND merged_into IS NULL FOR UPDATE
    `, userID, intoID).Scan(&exists); err != nil {
		return fmt.Errorf("merge target %s: %w", intoID, notFound(err))
	}
	res, err := tx.ExecContext(ctx, `UPDATE people SET merged_into=$1 WHERE user_id=$2 AND person_id=$3`, intoID, userID, fromID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("merge source %s: %w", fromID, model.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE moments SET person_id=$1 WHERE user_id=$2 AND person_id=$3`, intoID, userID, fromID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Reflections ---
type reflections struct{ db *sql.DB }

const reflectionSelect = `
        SELECT reflection_id, user_id, period, range_start::text, range_end::text, summary, suggestions,
               computed, model, created_at, regenerated_at
        FROM reflections`

func (r *reflections) Get(ctx context.Context, userID string, period model.Period, start, end civil.Date) (*model.Reflection, error) {
	row := r.db.QueryRowContext(ctx, reflectionSelect+`
        WHERE user_id=$1 AND period=$2 AND range_start=$3::date AND range_end=$4::date`,
		userID, string(period), start.String(), end.String())
	out, err := scanReflection(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (r *reflections) CreateIfAbsent(ctx context.Context, in *model.Reflection) (*model.Reflection, error) {
	args, err := reflectionArgs(in)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `
        INSERT INTO reflections (reflection_id, user_id, period, range_start, range_end, summary, suggestions, computed, model, regenerated_at)
        VALUES ($1,$2,$3,$4::date,$5::date,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id, period, range_start, range_end) DO NOTHING
    `, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, in.UserID, in.Period, in.RangeStart, in.RangeEnd)
}

func (r *reflections) Upsert(ctx context.Context, in *model.Reflection) (*model.Reflection, error) {
	args, err := reflectionArgs(in)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `
        INSERT INTO reflections (reflection_id, user_id, period, range_start, range_end, summary, suggestions, computed, model, regenerated_at)
        VALUES ($1,$2,$3,$4::date,$5::date,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id, period, range_start, range_end) DO UPDATE SET
            summary=EXCLUDED.summary,
            suggestions=EXCLUDED.suggestions,
            computed=EXCLUDED.computed,
            model=EXCLUDED.model,
            regenerated_at=EXCLUDED.regenerated_at
    `, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, in.UserID, in.Period, in.RangeStart, in.RangeEnd)
}

func reflectionArgs(in *model.Reflection) ([]interface{}, error) {
	id := in.ReflectionID
	if id == "" {
		id = uuid.New().String()
	}
	suggestions, err := json.Marshal(in.Suggestions)
	if err != nil {
		return nil, err
	}
	computed := []byte(in.Computed)
	if len(computed) == 0 {
		computed = []byte("{}")
	}
	var regenerated interface{}
	if in.RegeneratedAt != nil {
		regenerated = in.RegeneratedAt.UTC()
	}
	return []interface{}{
		id, in.UserID, string(in.Period), in.RangeStart.String(), in.RangeEnd.String(),
		in.Summary, suggestions, computed, string(in.Model), regenerated,
	}, nil
}

func scanReflection(r scanner) (*model.Reflection, error) {
	var out model.Reflection
	var period, start, end, modelName string
	var suggestions, computed []byte
	if err := r.Scan(&out.ReflectionID, &out.UserID, &period, &start, &end, &out.Summary, &suggestions,
		&computed, &modelName, &out.CreatedAt, &out.RegeneratedAt); err != nil {
		return nil, err
	}
	var err error
	if out.RangeStart, err = civil.ParseDate(start); err != nil {
		return nil, err
	}
	if out.RangeEnd, err = civil.ParseDate(end); err != nil {
		return nil, err
	}
	out.Period = model.Period(period)
	out.Model = model.NarrativeModel(modelName)
	out.Computed = json.RawMessage(computed)
	if len(suggestions) > 0 {
		_ = json.Unmarshal(suggestions, &out.Suggestions)
	}
	return &out, nil
}

// --- Streaks ---
type streaks struct{ db *sql.DB }

func (s *streaks) Get(ctx context.Context, userID string) (*model.Streak, error) {
	var out model.Streak
	var last sql.NullString
	row := s.db.QueryRowContext(ctx, `
        SELECT user_id, current_run, best_run, last_entry_date::text, computed_at FROM streaks WHERE user_id=$1
    `, userID)
	if err := row.Scan(&out.UserID, &out.Current, &out.Best, &last, &out.ComputedAt); err != nil {
		return nil, notFound(err)
	}
	if last.Valid {
		d, err := civil.ParseDate(last.String)
		if err != nil {
			return nil, err
		}
		out.LastEntryDate = &d
	}
	return &out, nil
}

func (s *streaks) Put(ctx context.Context, in *model.Streak) error {
	var last interface{}
	if in.LastEntryDate != nil {
		last = in.LastEntryDate.String()
	}
	computed := in.ComputedAt
	if computed.IsZero() {
		computed = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO streaks (user_id, current_run, best_run, last_entry_date, computed_at)
        VALUES ($1,$2,$3,$4::date,$5)
        ON CONFLICT (user_id) DO UPDATE SET current_run=EXCLUDED.current_run, best_run=EXCLUDED.best_run,
            last_entry_date=EXCLUDED.last_entry_date, computed_at=EXCLUDED.computed_at
    `, in.UserID, in.Current, in.Best, last, computed.UTC())
	return err
}

// helpers
func writeOutbox(ctx context.Context, tx *sql.Tx, op string, aggregateID string, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO outbox (aggregate_id, op, payload) VALUES ($1,$2,$3)`, aggregateID, op, b)
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
