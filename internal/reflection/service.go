// Package reflection persists period-scoped reflections: a computed aggregate
// plus a narrative that is rule-based on first creation and may be replaced by
// an AI narrative on explicit regeneration.
package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kafadas/kinjo/internal/metrics"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/narrative"
	"github.com/kafadas/kinjo/internal/people"
	"github.com/kafadas/kinjo/internal/redact"
	"github.com/kafadas/kinjo/internal/store"
	"github.com/kafadas/kinjo/internal/trends"
)

const (
	DefaultDebounce  = 60 * time.Second
	DefaultAITimeout = 20 * time.Second

	// maxContextNotes caps the redacted descriptions sent to the generator.
	maxContextNotes = 100
	// pruneAt is the admission map size above which stale entries are dropped.
	pruneAt = 1024
)

// Options configures a Service. A zero AITimeout picks DefaultAITimeout and a
// zero Debounce turns admission control off. A nil Narrative disables
// regeneration.
type Options struct {
	Narrative narrative.Generator
	AITimeout time.Duration
	Debounce  time.Duration
	Metrics   *metrics.Metrics
}

// Service implements get-or-generate and regenerate for reflections.
type Service struct {
	store     store.Store
	profiles  trends.Profiles
	ai        narrative.Generator
	aiTimeout time.Duration
	debounce  time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time

	flight singleflight.Group

	mu        sync.Mutex
	lastRegen map[admissionKey]time.Time
}

type admissionKey struct {
	userID string
	period model.Period
}

func NewService(st store.Store, profiles trends.Profiles, log zerolog.Logger, opts Options) *Service {
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	return &Service{
		store:     st,
		profiles:  profiles,
		ai:        opts.Narrative,
		aiTimeout: opts.AITimeout,
		debounce:  opts.Debounce,
		metrics:   opts.Metrics,
		log:       log,
		now:       time.Now,
		lastRegen: make(map[admissionKey]time.Time),
	}
}

// GetOrGenerate returns the persisted reflection for the period's current
// range, creating a rule-based one if none exists. Concurrent calls for the
// same range share one generation.
func (s *Service) GetOrGenerate(ctx context.Context, userID string, period model.Period) (*model.Reflection, error) {
	defer s.metrics.ObserveAggregate("reflection", time.Now())
	loc, r, err := s.resolve(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%s|%s|%s", userID, period, r.Start, r.End)
	// the generation is shared by every caller on key, so one caller's
	// cancellation must not fail the others
	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		existing, err := s.store.Reflections().Get(ctx, userID, period, r.Start, r.End)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: get reflection: %w", model.ErrUpstream, err)
		}

		snap, err := s.snapshot(ctx, userID, period, loc, r)
		if err != nil {
			return nil, err
		}
		n := RuleNarrative(snap.computed)
		row, err := s.store.Reflections().CreateIfAbsent(ctx, &model.Reflection{
			UserID:      userID,
			Period:      period,
			RangeStart:  r.Start,
			RangeEnd:    r.End,
			Summary:     n.Summary,
			Suggestions: n.Suggestions,
			Computed:    snap.raw,
			Model:       model.ModelRule,
			CreatedAt:   s.now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create reflection: %w", model.ErrUpstream, err)
		}
		s.metrics.ReflectionGenerated(string(model.ModelRule))
		s.log.Info().Str("user_id", userID).Str("period", string(period)).Str("model", string(row.Model)).Msg("reflection generated")
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Reflection), nil
}

// Regenerate replaces the period's narrative with an AI narrative. A call
// within the debounce window of the previous one for the same user and period
// returns (nil, nil). A failed AI call returns ErrNarrativeTimeout or
// ErrNarrativeFailed and leaves the persisted row untouched.
func (s *Service) Regenerate(ctx context.Context, userID string, period model.Period) (*model.Reflection, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: unknown period %q", model.ErrValidation, period)
	}
	if s.ai == nil {
		return nil, model.ErrNarrativeUnavailable
	}
	if !s.admit(admissionKey{userID: userID, period: period}) {
		s.metrics.Debounced()
		s.log.Debug().Str("user_id", userID).Str("period", string(period)).Msg("regenerate debounced")
		return nil, nil
	}

	loc, r, err := s.resolve(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, userID, period, loc, r)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if snap.computed.Total == 0 {
		return s.regenerateQuiet(ctx, userID, period, r, snap, now)
	}

	actx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	n, err := s.ai.Generate(actx, narrative.Request{Computed: snap.raw, Context: snap.notes})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			s.metrics.NarrativeFailed("timeout")
			s.log.Warn().Str("user_id", userID).Str("period", string(period)).Dur("timeout", s.aiTimeout).Msg("narrative generation timed out")
			return nil, fmt.Errorf("%w: %w", model.ErrNarrativeTimeout, err)
		}
		s.metrics.NarrativeFailed("error")
		s.log.Error().Stack().Err(err).Str("user_id", userID).Str("period", string(period)).Msg("narrative generation failed")
		return nil, fmt.Errorf("%w: %w", model.ErrNarrativeFailed, err)
	}

	row, err := s.store.Reflections().Upsert(ctx, &model.Reflection{
		UserID:        userID,
		Period:        period,
		RangeStart:    r.Start,
		RangeEnd:      r.End,
		Summary:       n.Summary,
		Suggestions:   nonNil(n.Suggestions),
		Computed:      snap.raw,
		Model:         model.ModelAI,
		CreatedAt:     now,
		RegeneratedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert reflection: %w", model.ErrUpstream, err)
	}
	s.metrics.ReflectionGenerated(string(model.ModelAI))
	s.log.Info().Str("user_id", userID).Str("period", string(period)).Str("model", string(row.Model)).Msg("reflection regenerated")
	return row, nil
}

// regenerateQuiet handles an empty range: the quiet text is rule-based and
// never replaces an AI narrative.
func (s *Service) regenerateQuiet(ctx context.Context, userID string, period model.Period, r trends.Range, snap *snapshot, now time.Time) (*model.Reflection, error) {
	existing, err := s.store.Reflections().Get(ctx, userID, period, r.Start, r.End)
	switch {
	case err == nil && existing.Model == model.ModelAI:
		return existing, nil
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("%w: get reflection: %w", model.ErrUpstream, err)
	}
	n := RuleNarrative(snap.computed)
	row, err := s.store.Reflections().Upsert(ctx, &model.Reflection{
		UserID:        userID,
		Period:        period,
		RangeStart:    r.Start,
		RangeEnd:      r.End,
		Summary:       n.Summary,
		Suggestions:   n.Suggestions,
		Computed:      snap.raw,
		Model:         model.ModelRule,
		CreatedAt:     now,
		RegeneratedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert reflection: %w", model.ErrUpstream, err)
	}
	s.metrics.ReflectionGenerated(string(model.ModelRule))
	return row, nil
}

// admit records an optimistic attempt for k and reports whether it is
// outside the debounce window of the previous one.
func (s *Service) admit(k admissionKey) bool {
	if s.debounce == 0 {
		return true
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastRegen[k]; ok && now.Sub(last) < s.debounce {
		return false
	}
	s.lastRegen[k] = now
	if len(s.lastRegen) > pruneAt {
		for key, t := range s.lastRegen {
			if now.Sub(t) >= s.debounce {
				delete(s.lastRegen, key)
			}
		}
	}
	return true
}

type snapshot struct {
	computed *ComputedAggregate
	raw      json.RawMessage
	notes    []string
}

// snapshot reads the range, its baseline, category names and people, and
// computes the aggregate and the redacted notes.
func (s *Service) snapshot(ctx context.Context, userID string, period model.Period, loc *time.Location, r trends.Range) (*snapshot, error) {
	var f trends.Filter
	base, _ := r.Baseline()

	var current, baseline []*model.Moment
	var names map[string]string
	var ppl []*model.Person
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.store.Moments().Query(gctx, r.Query(userID, loc, f))
		if err != nil {
			return fmt.Errorf("%w: query moments: %w", model.ErrUpstream, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		baseline, err = s.store.Moments().Query(gctx, base.Query(userID, loc, f))
		if err != nil {
			return fmt.Errorf("%w: query baseline: %w", model.ErrUpstream, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		names, err = trends.CategoryNames(gctx, s.store, userID)
		return err
	})
	g.Go(func() error {
		var err error
		ppl, err = s.store.People().List(gctx, userID)
		if err != nil {
			return fmt.Errorf("%w: list people: %w", model.ErrUpstream, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c, err := Compute(Input{
		Period:   period,
		Range:    r,
		Location: loc,
		Current:  current,
		Baseline: baseline,
		Names:    names,
		People:   people.NewGraph(ppl),
	})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return &snapshot{computed: c, raw: raw, notes: notes(current, ppl)}, nil
}

// notes returns the redacted descriptions of the most recent moments.
func notes(moments []*model.Moment, ppl []*model.Person) []string {
	texts := make([]string, 0, len(moments))
	for i := len(moments) - 1; i >= 0 && len(texts) < maxContextNotes; i-- {
		if d := moments[i].Description; d != "" {
			texts = append(texts, d)
		}
	}
	return redact.New(ppl).Texts(texts)
}

func (s *Service) resolve(ctx context.Context, userID string, period model.Period) (*time.Location, trends.Range, error) {
	if userID == "" {
		return nil, trends.Range{}, model.ErrNotAuthenticated
	}
	loc, err := s.profiles.Location(ctx, userID)
	if err != nil {
		return nil, trends.Range{}, err
	}
	r, err := trends.PeriodRange(period, s.now(), loc)
	if err != nil {
		return nil, trends.Range{}, err
	}
	return loc, r, nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
