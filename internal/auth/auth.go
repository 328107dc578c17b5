// Package auth resolves bearer keys to user ids and carries the user id
// through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kafadas/kinjo/internal/model"
)

// Authenticator maps an API key to the user it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (string, error)
}

// Static authenticates against a fixed key to user id table. It is meant
// for local development.
type Static struct {
	keys map[string]string
}

func NewStatic(keys map[string]string) *Static {
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		if k != "" && v != "" {
			cp[k] = v
		}
	}
	return &Static{keys: cp}
}

func (s *Static) Authenticate(_ context.Context, apiKey string) (string, error) {
	if uid, ok := s.keys[apiKey]; ok {
		return uid, nil
	}
	return "", fmt.Errorf("%w: unknown api key", model.ErrNotAuthenticated)
}

// ExtractAPIKey extracts the API key from an "Authorization: Bearer <key>" header.
func ExtractAPIKey(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <api_key>'")
	}
	return parts[1], nil
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the authenticated user id, or ErrNotAuthenticated.
func UserFrom(ctx context.Context) (string, error) {
	uid, _ := ctx.Value(ctxKey{}).(string)
	if uid == "" {
		return "", model.ErrNotAuthenticated
	}
	return uid, nil
}
