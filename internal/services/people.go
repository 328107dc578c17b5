package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/people"
	"github.com/kafadas/kinjo/internal/store"
)

type PeopleService struct {
	store store.Store
	log   zerolog.Logger
}

func NewPeopleService(s store.Store, log zerolog.Logger) *PeopleService {
	return &PeopleService{store: s, log: log}
}

func (s *PeopleService) List(ctx context.Context, userID string) ([]*model.Person, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	ppl, err := s.store.People().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list people: %w", model.ErrUpstream, err)
	}
	return ppl, nil
}

func (s *PeopleService) Create(ctx context.Context, p *model.Person) (*model.Person, error) {
	if p.UserID == "" {
		return nil, model.ErrNotAuthenticated
	}
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		return nil, fmt.Errorf("%w: displayName is required", model.ErrValidation)
	}
	aliases := make([]string, 0, len(p.Aliases))
	for _, a := range p.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}
	p.Aliases = aliases
	p.MergedInto = nil
	out, err := s.store.People().Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: create person: %w", model.ErrUpstream, err)
	}
	return out, nil
}

// Merge folds fromID into the terminal person of intoID and returns that
// terminal id. Merging into a chain that leads back to fromID is rejected
// with ErrMergeCycle.
func (s *PeopleService) Merge(ctx context.Context, userID, fromID, intoID string) (string, error) {
	if userID == "" {
		return "", model.ErrNotAuthenticated
	}
	if intoID == "" {
		return "", fmt.Errorf("%w: into is required", model.ErrValidation)
	}
	ppl, err := s.store.People().List(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: list people: %w", model.ErrUpstream, err)
	}
	terminal, err := people.NewGraph(ppl).MergeTarget(fromID, intoID)
	if err != nil {
		return "", err
	}
	if err := s.store.People().Merge(ctx, userID, fromID, terminal); err != nil {
		if isDomainErr(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: merge people: %w", model.ErrUpstream, err)
	}
	s.log.Info().Str("user_id", userID).Str("from", fromID).Str("into", terminal).Msg("people merged")
	return terminal, nil
}
