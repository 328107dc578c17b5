package api

import (
	"net/http"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/auth"
	"github.com/kafadas/kinjo/internal/model"
)

// Authenticate resolves the bearer key to a user id and stores it in the
// request context. Requests without a valid key get 401.
func Authenticate(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := auth.ExtractAPIKey(r)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			uid, err := a.Authenticate(r.Context(), key)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, model.ErrNotAuthenticated.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), uid)))
		})
	}
}

// userID returns the authenticated user or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := auth.UserFrom(r.Context())
	if err != nil {
		respond.WriteServiceError(w, err)
		return "", false
	}
	return uid, true
}
