package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

// NewWithDB constructs a SQLite store over an opened connection.
// Timestamps are stored as unix milliseconds so range scans compare integers.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users             { return &users{db: s.db} }
func (s *sqliteStore) Moments() store.Moments         { return &moments{db: s.db} }
func (s *sqliteStore) Categories() store.Categories   { return &categories{db: s.db} }
func (s *sqliteStore) People() store.People           { return &people{db: s.db} }
func (s *sqliteStore) Reflections() store.Reflections { return &reflections{db: s.db} }
func (s *sqliteStore) Streaks() store.Streaks         { return &streaks{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Users ---
type users struct{ db *sql.DB }

func (u *users) Upsert(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	if _, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, display_name, time_zone, creation_time) VALUES (?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET display_name=excluded.display_name, time_zone=excluded.time_zone
    `, m.UserID, m.DisplayName, m.TimeZone, toMillis(now)); err != nil {
		return nil, err
	}
	return u.Get(ctx, m.UserID)
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	var name sql.NullString
	var created int64
	row := u.db.QueryRowContext(ctx, `SELECT user_id, display_name, time_zone, creation_time FROM users WHERE user_id=?`, userID)
	if err := row.Scan(&out.UserID, &name, &out.TimeZone, &created); err != nil {
		return nil, notFound(err)
	}
	if name.Valid {
		out.DisplayName = &name.String
	}
	out.CreationTime = fromMillis(created)
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
	out.HappenedAt = out.HappenedAt.UTC().Truncate(time.Millisecond)
	out.CreationTime = time.Now().UTC().Truncate(time.Millisecond)
	tags, err := json.Marshal(out.Tags)
	if err != nil {
		return nil, err
	}
	if _, err := m.db.ExecContext(ctx, `INSERT INTO moments (`+momentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		out.MomentID, out.UserID, toMillis(out.HappenedAt), string(out.Action), out.CategoryID, out.PersonID,
		out.Significance, string(tags), out.Description, toMillis(out.CreationTime)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *moments) Get(ctx context.Context, userID, momentID string) (*model.Moment, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+momentColumns+` FROM moments WHERE user_id=? AND moment_id=?`, userID, momentID)
	out, err := scanMoment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (m *moments) Query(ctx context.Context, q model.MomentQuery) ([]*model.Moment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + momentColumns + ` FROM moments WHERE user_id=?`)
	args := []interface{}{q.UserID}
	if q.From != nil {
		sb.WriteString(" AND happened_at >= ?")
		args = append(args, toMillis(*q.From))
	}
	if q.To != nil {
		sb.WriteString(" AND happened_at <= ?")
		args = append(args, toMillis(*q.To))
	}
	switch q.Action {
	case model.ActionOnlyGiven, model.ActionOnlyReceived:
		sb.WriteString(" AND action = ?")
		args = append(args, string(q.Action))
	}
	if q.SignificanceOnly {
		sb.WriteString(" AND significance = 1")
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
	res, err := m.db.ExecContext(ctx, `DELETE FROM moments WHERE user_id=? AND moment_id=?`, userID, momentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *moments) ReassignCategory(ctx context.Context, userID, fromID, toID string) (int64, error) {
	res, err := m.db.ExecContext(ctx, `UPDATE moments SET category_id=? WHERE user_id=? AND category_id=?`, toID, userID, fromID)
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
	var cat, person, tags sql.NullString
	var happened, created int64
	if err := r.Scan(&out.MomentID, &out.UserID, &happened, &action, &cat, &person, &out.Significance, &tags, &out.Description, &created); err != nil {
		return nil, err
	}
	out.Action = model.Action(action)
	out.HappenedAt = fromMillis(happened)
	out.CreationTime = fromMillis(created)
	if cat.Valid {
		out.CategoryID = &cat.String
	}
	if person.Valid {
		out.PersonID = &person.String
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &out.Tags)
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
	out.CreationTime = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := c.db.ExecContext(ctx, `
        INSERT INTO categories (category_id, user_id, name, slug, sort_order, creation_time) VALUES (?,?,?,?,?,?)
    `, out.CategoryID, out.UserID, out.Name, out.Slug, out.SortOrder, toMillis(out.CreationTime)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: category slug %q exists", model.ErrConflict, out.Slug)
		}
		return nil, err
	}
	return &out, nil
}

func (c *categories) List(ctx context.Context, userID string) ([]*model.Category, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT category_id, user_id, name, slug, sort_order, creation_time
        FROM categories WHERE user_id=? ORDER BY sort_order ASC, name ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Category, 0)
	for rows.Next() {
		var cc model.Category
		var created int64
		if err := rows.Scan(&cc.CategoryID, &cc.UserID, &cc.Name, &cc.Slug, &cc.SortOrder, &created); err != nil {
			return nil, err
		}
		cc.CreationTime = fromMillis(created)
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
	out.CreationTime = time.Now().UTC().Truncate(time.Millisecond)
	aliases, err := json.Marshal(out.Aliases)
	if err != nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `
        INSERT INTO people (person_id, user_id, display_name, aliases, merged_into, creation_time) VALUES (?,?,?,?,NULL,?)
    `, out.PersonID, out.UserID, out.DisplayName, string(aliases), toMillis(out.CreationTime)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *people) List(ctx context.Context, userID string) ([]*model.Person, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT person_id, user_id, display_name, aliases, merged_into, creation_time
        FROM people WHERE user_id=? ORDER BY display_name ASC, person_id ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Person, 0)
	for rows.Next() {
		var pp model.Person
		var aliases, merged sql.NullString
		var created int64
		if err := rows.Scan(&pp.PersonID, &pp.UserID, &pp.DisplayName, &aliases, &merged, &created); err != nil {
			return nil, err
		}
		if aliases.Valid && aliases.String != "" {
			_ = json.Unmarshal([]byte(aliases.String), &pp.Aliases)
		}
		if merged.Valid {
			pp.MergedInto = &merged.String
		}
		pp.CreationTime = fromMillis(created)
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
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM people WHERE user_id=? AND person_id=? AND merged_into IS NULL`, userID, intoID).Scan(&exists); err != nil {
		return fmt.Errorf("merge target %s: %w", intoID, notFound(err))
	}
	res, err := tx.ExecContext(ctx, `UPDATE people SET merged_into=? WHERE user_id=? AND person_id=?`, intoID, userID, fromID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("merge source %s: %w", fromID, model.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE moments SET person_id=? WHERE user_id=? AND person_id=?`, intoID, userID, fromID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Reflections ---
type reflections struct{ db *sql.DB }

const reflectionColumns = `reflection_id, user_id, period, range_start, range_end, summary, suggestions, computed, model, created_at, regenerated_at`

func (r *reflections) Get(ctx context.Context, userID string, period model.Period, start, end civil.Date) (*model.Reflection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reflectionColumns+` FROM reflections
        WHERE user_id=? AND period=? AND range_start=? AND range_end=?`,
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
	if _, err := r.db.ExecContext(ctx, `INSERT INTO reflections (`+reflectionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(user_id, period, range_start, range_end) DO NOTHING`, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, in.UserID, in.Period, in.RangeStart, in.RangeEnd)
}

func (r *reflections) Upsert(ctx context.Context, in *model.Reflection) (*model.Reflection, error) {
	args, err := reflectionArgs(in)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO reflections (`+reflectionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(user_id, period, range_start, range_end) DO UPDATE SET
            summary=excluded.summary,
            suggestions=excluded.suggestions,
            computed=excluded.computed,
            model=excluded.model,
            regenerated_at=excluded.regenerated_at`, args...); err != nil {
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
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var regenerated interface{}
	if in.RegeneratedAt != nil {
		regenerated = toMillis(*in.RegeneratedAt)
	}
	return []interface{}{
		id, in.UserID, string(in.Period), in.RangeStart.String(), in.RangeEnd.String(),
		in.Summary, string(suggestions), string(in.Computed), string(in.Model), toMillis(created), regenerated,
	}, nil
}

func scanReflection(r scanner) (*model.Reflection, error) {
	var out model.Reflection
	var period, start, end, modelName, computed string
	var suggestions sql.NullString
	var created int64
	var regenerated sql.NullInt64
	if err := r.Scan(&out.ReflectionID, &out.UserID, &period, &start, &end, &out.Summary, &suggestions, &computed, &modelName, &created, &regenerated); err != nil {
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
	out.CreatedAt = fromMillis(created)
	if regenerated.Valid {
		t := fromMillis(regenerated.Int64)
		out.RegeneratedAt = &t
	}
	if suggestions.Valid && suggestions.String != "" {
		_ = json.Unmarshal([]byte(suggestions.String), &out.Suggestions)
	}
	return &out, nil
}

// --- Streaks ---
type streaks struct{ db *sql.DB }

func (s *streaks) Get(ctx context.Context, userID string) (*model.Streak, error) {
	var out model.Streak
	var last sql.NullString
	var computed int64
	row := s.db.QueryRowContext(ctx, `SELECT user_id, current_run, best_run, last_entry_date, computed_at FROM streaks WHERE user_id=?`, userID)
	if err := row.Scan(&out.UserID, &out.Current, &out.Best, &last, &computed); err != nil {
		return nil, notFound(err)
	}
	if last.Valid {
		d, err := civil.ParseDate(last.String)
		if err != nil {
			return nil, err
		}
		out.LastEntryDate = &d
	}
	out.ComputedAt = fromMillis(computed)
	return &out, nil
}

func (s *streaks) Put(ctx context.Context, in *model.Streak) error {
	var last interface{}
	if in.LastEntryDate != nil {
		last = in.LastEntryDate.String()
	}
	computed := in.ComputedAt
	if computed.IsZero() {
		computed = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO streaks (user_id, current_run, best_run, last_entry_date, computed_at) VALUES (?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET current_run=excluded.current_run, best_run=excluded.best_run,
            last_entry_date=excluded.last_entry_date, computed_at=excluded.computed_at
    `, in.UserID, in.Current, in.Best, last, toMillis(computed))
	return err
}

// helpers
func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
