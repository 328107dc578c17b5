package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

// ProfileService reads and writes the caller's profile and resolves the
// timezone every aggregate is bucketed in.
type ProfileService struct {
	store store.Store
	log   zerolog.Logger
}

func NewProfileService(s store.Store, log zerolog.Logger) *ProfileService {
	return &ProfileService{store: s, log: log}
}

// Location returns the user's timezone. A missing profile or an empty
// timezone means UTC. A stored zone the runtime cannot load also falls back
// to UTC, with a warning.
func (s *ProfileService) Location(ctx context.Context, userID string) (*time.Location, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	u, err := s.store.Users().Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %w", model.ErrUpstream, err)
	}
	loc, err := civil.LoadLocation(u.TimeZone)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("stored timezone invalid, using UTC")
		return time.UTC, nil
	}
	return loc, nil
}

// Get returns the profile, or a default UTC profile when none is stored yet.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	u, err := s.store.Users().Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return &model.User{UserID: userID, TimeZone: civil.DefaultTimezone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %w", model.ErrUpstream, err)
	}
	return u, nil
}

// Upsert stores the profile after validating its timezone.
func (s *ProfileService) Upsert(ctx context.Context, u *model.User) (*model.User, error) {
	if u.UserID == "" {
		return nil, model.ErrNotAuthenticated
	}
	u.TimeZone = strings.TrimSpace(u.TimeZone)
	if u.TimeZone == "" {
		u.TimeZone = civil.DefaultTimezone
	}
	if _, err := civil.LoadLocation(u.TimeZone); err != nil {
		return nil, fmt.Errorf("%w: timeZone: %w", model.ErrValidation, err)
	}
	out, err := s.store.Users().Upsert(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert profile: %w", model.ErrUpstream, err)
	}
	return out, nil
}
