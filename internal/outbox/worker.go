// Package outbox drains the Postgres outbox table and refreshes cached
// streak rows for users whose moments changed.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store/postgres"
)

// SQL statements kept as constants for clarity and reuse
const (
	selectReadyRowsSQL = `
SELECT id, op, payload, aggregate_id
FROM outbox
WHERE status = 'pending' AND next_attempt_at <= now()
ORDER BY id ASC
FOR UPDATE SKIP LOCKED
LIMIT $1`

	markDoneSQL = `UPDATE outbox SET status='done', update_time=now() WHERE id=$1`

	markFailedSQL = `
UPDATE outbox
SET attempt_count = attempt_count + 1,
    next_attempt_at = now() + make_interval(secs => LEAST(POWER(2, attempt_count+1), 300)),
    update_time = now()
WHERE id=$1`
)

// StreakRefresher rebuilds a user's cached streak. trends.Service satisfies it.
type StreakRefresher interface {
	RefreshStreak(ctx context.Context, userID string) (*model.Streak, error)
}

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize int           // number of rows to lease per cycle
	Interval  time.Duration // poll interval
}

// Worker leases pending outbox rows and applies them.
type Worker struct {
	db      *sql.DB
	log     zerolog.Logger
	streaks StreakRefresher
	cfg     Config
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(db *sql.DB, streaks StreakRefresher, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Worker{db: db, log: log, streaks: streaks, cfg: cfg}
}

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				// per-row backoff prevents hot-looping
				w.log.Error().Stack().Err(err).Msg("outbox processOnce")
			}
		}
	}
}

type job struct {
	id          int64
	op          string
	aggregateID string
	payload     map[string]interface{}
}

// ProcessOnce leases one batch, applies it and commits. It returns the
// number of rows marked done.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	tx, err := w.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	jobs, err := w.leaseBatch(ctx, tx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, tx.Commit()
	}

	done := 0
	results := w.apply(ctx, jobs)
	for _, j := range jobs {
		if err := results[j.id]; err != nil {
			w.log.Warn().Err(err).Int64("id", j.id).Str("op", j.op).Str("user_id", j.aggregateID).Msg("outbox job failed")
			if e := w.markFailed(ctx, tx, j.id); e != nil {
				w.log.Error().Err(e).Int64("id", j.id).Msg("markFailed error")
			}
			continue
		}
		if e := w.markDone(ctx, tx, j.id); e != nil {
			w.log.Error().Err(e).Int64("id", j.id).Msg("markDone error")
			continue
		}
		done++
	}
	return done, tx.Commit()
}

// apply runs every job and returns the error per job id. Refreshes are
// idempotent, so jobs of the same user in one batch share one refresh.
func (w *Worker) apply(ctx context.Context, jobs []job) map[int64]error {
	results := make(map[int64]error, len(jobs))
	refreshed := make(map[string]error)
	for _, j := range jobs {
		switch j.op {
		case postgres.OpRefreshStreak:
			err, ok := refreshed[j.aggregateID]
			if !ok {
				err = w.refresh(ctx, j.aggregateID)
				refreshed[j.aggregateID] = err
			}
			results[j.id] = err
		default:
			results[j.id] = fmt.Errorf("unknown op: %s", j.op)
		}
	}
	return results
}

func (w *Worker) refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("refresh_streak job without user id")
	}
	st, err := w.streaks.RefreshStreak(ctx, userID)
	if err != nil {
		return err
	}
	w.log.Debug().Str("user_id", userID).Int("current", st.Current).Int("best", st.Best).Msg("streak refreshed")
	return nil
}

// leaseBatch locks and returns up to batchSize ready outbox rows.
func (w *Worker) leaseBatch(ctx context.Context, tx *sql.Tx, batchSize int) ([]job, error) {
	rows, err := tx.QueryContext(ctx, selectReadyRowsSQL, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []job
	var poisoned []int64
	for rows.Next() {
		var j job
		var raw []byte
		if err := rows.Scan(&j.id, &j.op, &raw, &j.aggregateID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &j.payload); err != nil {
			poisoned = append(poisoned, j.id)
			continue
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// poison pills back off instead of hot-looping
	for _, id := range poisoned {
		w.log.Warn().Int64("id", id).Msg("outbox payload unreadable")
		_ = w.markFailed(ctx, tx, id)
	}
	return jobs, nil
}

func (w *Worker) markDone(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, markDoneSQL, id)
	return err
}

func (w *Worker) markFailed(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, markFailedSQL, id)
	return err
}
