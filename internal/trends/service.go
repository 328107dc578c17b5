package trends

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/metrics"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

// Profiles resolves a user's configured timezone.
type Profiles interface {
	Location(ctx context.Context, userID string) (*time.Location, error)
}

// Query holds the filters shared by the trend endpoints.
type Query struct {
	Range            RangeSpec
	Action           model.ActionFilter
	SignificanceOnly bool
}

func (q Query) filter() Filter {
	return Filter{Action: q.Action, SignificanceOnly: q.SignificanceOnly}
}

// Service exposes the aggregation core over the event store. Every call is a
// stateless read-then-compute and is safe for concurrent use.
type Service struct {
	store    store.Store
	profiles Profiles
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(st store.Store, profiles Profiles, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{store: st, profiles: profiles, metrics: m, log: log, now: time.Now}
}

// DailyCounts returns the dense per-day series for the query range.
func (s *Service) DailyCounts(ctx context.Context, userID string, q Query) (*DailySeries, error) {
	defer s.metrics.ObserveAggregate("daily", time.Now())
	loc, r, err := s.resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	moments, err := s.query(ctx, r.Query(userID, loc, q.filter()))
	if err != nil {
		return nil, err
	}
	return Summarize(Daily(moments, r, loc, q.filter()), loc.String()), nil
}

// CategoryShareDelta returns category shares of the range with deltas
// against the preceding window of equal length.
func (s *Service) CategoryShareDelta(ctx context.Context, userID string, q Query) ([]CategoryShare, error) {
	defer s.metrics.ObserveAggregate("category_share", time.Now())
	loc, r, err := s.resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	f := q.filter()
	base, compare := r.Baseline()

	var current, baseline []*model.Moment
	var names map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.query(gctx, r.Query(userID, loc, f))
		return err
	})
	if compare {
		g.Go(func() error {
			var err error
			baseline, err = s.query(gctx, base.Query(userID, loc, f))
			return err
		})
	}
	g.Go(func() error {
		var err error
		names, err = s.categoryNames(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return CategoryShares(current, baseline, compare, names, f), nil
}

// MedianGaps returns the per-category median gap over the range.
func (s *Service) MedianGaps(ctx context.Context, userID string, q Query) ([]MedianGap, error) {
	defer s.metrics.ObserveAggregate("median_gaps", time.Now())
	loc, r, err := s.resolve(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	f := q.filter()

	var moments []*model.Moment
	var names map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		moments, err = s.query(gctx, r.Query(userID, loc, f))
		return err
	})
	g.Go(func() error {
		var err error
		names, err = s.categoryNames(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MedianGaps(moments, names, f), nil
}

// Streak recomputes the user's streak from the full moment log. The cached
// row is refreshed on the way out but never read.
func (s *Service) Streak(ctx context.Context, userID string) (*model.Streak, error) {
	defer s.metrics.ObserveAggregate("streak", time.Now())
	st, err := s.computeStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Streaks().Put(ctx, st); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("streak cache refresh failed")
	}
	return st, nil
}

// RefreshStreak rebuilds and stores the cached streak row.
func (s *Service) RefreshStreak(ctx context.Context, userID string) (*model.Streak, error) {
	st, err := s.computeStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Streaks().Put(ctx, st); err != nil {
		return nil, fmt.Errorf("%w: store streak: %w", model.ErrUpstream, err)
	}
	return st, nil
}

func (s *Service) computeStreak(ctx context.Context, userID string) (*model.Streak, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	loc, err := s.profiles.Location(ctx, userID)
	if err != nil {
		return nil, err
	}
	moments, err := s.query(ctx, model.MomentQuery{UserID: userID})
	if err != nil {
		return nil, err
	}
	instants := make([]time.Time, 0, len(moments))
	for _, m := range moments {
		instants = append(instants, m.HappenedAt)
	}
	now := s.now()
	st := ComputeStreak(instants, loc, civil.Today(now, loc))
	st.UserID = userID
	st.ComputedAt = now.UTC()
	return &st, nil
}

func (s *Service) resolve(ctx context.Context, userID string, q Query) (*time.Location, Range, error) {
	if userID == "" {
		return nil, Range{}, model.ErrNotAuthenticated
	}
	if !q.Action.Valid() {
		return nil, Range{}, fmt.Errorf("%w: unknown action filter %q", model.ErrValidation, q.Action)
	}
	loc, err := s.profiles.Location(ctx, userID)
	if err != nil {
		return nil, Range{}, err
	}
	r, err := ResolveRange(q.Range, s.now(), loc)
	if err != nil {
		return nil, Range{}, err
	}
	return loc, r, nil
}

func (s *Service) query(ctx context.Context, q model.MomentQuery) ([]*model.Moment, error) {
	moments, err := s.store.Moments().Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: query moments: %w", model.ErrUpstream, err)
	}
	return moments, nil
}

func (s *Service) categoryNames(ctx context.Context, userID string) (map[string]string, error) {
	return CategoryNames(ctx, s.store, userID)
}

// CategoryNames maps category ids of the user to their names.
func CategoryNames(ctx context.Context, st store.Store, userID string) (map[string]string, error) {
	cats, err := st.Categories().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %w", model.ErrUpstream, err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.CategoryID] = c.Name
	}
	return names, nil
}
