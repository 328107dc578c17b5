package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/people"
	"github.com/kafadas/kinjo/internal/store"
)

// maxClockSkew is how far ahead of the server clock a capture may be dated.
const maxClockSkew = 5 * time.Minute

// MomentService handles capture and bulk maintenance of moments.
type MomentService struct {
	store store.Store
	now   func() time.Time
}

func NewMomentService(s store.Store) *MomentService {
	return &MomentService{store: s, now: time.Now}
}

// Create validates m against the caller's categories and people and stores
// it. A person that was merged away is replaced by its terminal person.
func (s *MomentService) Create(ctx context.Context, m *model.Moment) (*model.Moment, error) {
	if m.UserID == "" {
		return nil, model.ErrNotAuthenticated
	}
	if !m.Action.Valid() {
		return nil, fmt.Errorf("%w: action must be given or received", model.ErrValidation)
	}
	if m.HappenedAt.IsZero() {
		return nil, fmt.Errorf("%w: happenedAt is required", model.ErrValidation)
	}
	if m.HappenedAt.After(s.now().Add(maxClockSkew)) {
		return nil, fmt.Errorf("%w: happenedAt is in the future", model.ErrValidation)
	}
	m.HappenedAt = m.HappenedAt.UTC()
	m.Description = strings.TrimSpace(m.Description)

	if m.CategoryID != nil {
		if err := s.ownsCategory(ctx, m.UserID, *m.CategoryID); err != nil {
			return nil, err
		}
	}
	if m.PersonID != nil {
		ppl, err := s.store.People().List(ctx, m.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: list people: %w", model.ErrUpstream, err)
		}
		g := people.NewGraph(ppl)
		if _, ok := g[*m.PersonID]; !ok {
			return nil, fmt.Errorf("%w: unknown personId %s", model.ErrValidation, *m.PersonID)
		}
		terminal, err := g.Resolve(*m.PersonID)
		if err != nil {
			return nil, err
		}
		m.PersonID = &terminal
	}

	out, err := s.store.Moments().Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: create moment: %w", model.ErrUpstream, err)
	}
	return out, nil
}

func (s *MomentService) Delete(ctx context.Context, userID, momentID string) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}
	err := s.store.Moments().Delete(ctx, userID, momentID)
	if err != nil && !isDomainErr(err) {
		return fmt.Errorf("%w: delete moment: %w", model.ErrUpstream, err)
	}
	return err
}

// ReassignCategory moves every moment of fromID to toID and returns the
// number of moments moved.
func (s *MomentService) ReassignCategory(ctx context.Context, userID, fromID, toID string) (int64, error) {
	if userID == "" {
		return 0, model.ErrNotAuthenticated
	}
	if fromID == toID {
		return 0, fmt.Errorf("%w: source and target category are the same", model.ErrValidation)
	}
	cats, err := s.store.Categories().List(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: list categories: %w", model.ErrUpstream, err)
	}
	var haveFrom, haveTo bool
	for _, c := range cats {
		haveFrom = haveFrom || c.CategoryID == fromID
		haveTo = haveTo || c.CategoryID == toID
	}
	if !haveFrom {
		return 0, fmt.Errorf("%w: category %s", model.ErrNotFound, fromID)
	}
	if !haveTo {
		return 0, fmt.Errorf("%w: unknown target category %s", model.ErrValidation, toID)
	}
	n, err := s.store.Moments().ReassignCategory(ctx, userID, fromID, toID)
	if err != nil {
		return 0, fmt.Errorf("%w: reassign category: %w", model.ErrUpstream, err)
	}
	return n, nil
}

func (s *MomentService) ownsCategory(ctx context.Context, userID, categoryID string) error {
	cats, err := s.store.Categories().List(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: list categories: %w", model.ErrUpstream, err)
	}
	for _, c := range cats {
		if c.CategoryID == categoryID {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown categoryId %s", model.ErrValidation, categoryID)
}
