package store

import (
	"context"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
// Lookups of missing rows return model.ErrNotFound.
type Store interface {
	Users() Users
	Moments() Moments
	Categories() Categories
	People() People
	Reflections() Reflections
	Streaks() Streaks
}

type Users interface {
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

// Moments is the event store. Query bounds are absolute instants; converting
// civil dates to instants is the caller's job.
type Moments interface {
	Create(ctx context.Context, m *model.Moment) (*model.Moment, error)
	Get(ctx context.Context, userID, momentID string) (*model.Moment, error)
	Query(ctx context.Context, q model.MomentQuery) ([]*model.Moment, error)
	Delete(ctx context.Context, userID, momentID string) error
	// ReassignCategory moves every moment of fromID to toID and returns the count.
	ReassignCategory(ctx context.Context, userID, fromID, toID string) (int64, error)
}

type Categories interface {
	Create(ctx context.Context, c *model.Category) (*model.Category, error)
	List(ctx context.Context, userID string) ([]*model.Category, error)
}

type People interface {
	Create(ctx context.Context, p *model.Person) (*model.Person, error)
	List(ctx context.Context, userID string) ([]*model.Person, error)
	// Merge repoints all moments of fromID to intoID and marks fromID merged.
	// intoID must already be a terminal person.
	Merge(ctx context.Context, userID, fromID, intoID string) error
}

// Reflections persists at most one row per (user, period, start, end).
type Reflections interface {
	Get(ctx context.Context, userID string, period model.Period, start, end civil.Date) (*model.Reflection, error)
	// CreateIfAbsent inserts r unless a row with the same key exists, and
	// returns whichever row is persisted afterwards.
	CreateIfAbsent(ctx context.Context, r *model.Reflection) (*model.Reflection, error)
	// Upsert overwrites the narrative, computed blob, model and regenerated_at
	// of the row with r's key, inserting it if needed. CreatedAt is preserved.
	Upsert(ctx context.Context, r *model.Reflection) (*model.Reflection, error)
}

type Streaks interface {
	Get(ctx context.Context, userID string) (*model.Streak, error)
	Put(ctx context.Context, s *model.Streak) error
}
