package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

type CategoryService struct {
	store store.Store
}

func NewCategoryService(s store.Store) *CategoryService { return &CategoryService{store: s} }

func (s *CategoryService) List(ctx context.Context, userID string) ([]*model.Category, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	cats, err := s.store.Categories().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %w", model.ErrUpstream, err)
	}
	return cats, nil
}

// Create stores c, deriving the slug from the name when none is given.
// Slugs are unique per user.
func (s *CategoryService) Create(ctx context.Context, c *model.Category) (*model.Category, error) {
	if c.UserID == "" {
		return nil, model.ErrNotAuthenticated
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return nil, fmt.Errorf("%w: name has no usable characters for a slug", model.ErrValidation)
	}
	out, err := s.store.Categories().Create(ctx, c)
	if err != nil && isDomainErr(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create category: %w", model.ErrUpstream, err)
	}
	return out, nil
}

// Slugify lowercases name and joins its letter and digit runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
