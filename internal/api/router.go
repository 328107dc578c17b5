package api

import (
	"github.com/gorilla/mux"

	"github.com/kafadas/kinjo/internal/api/recovery"
	"github.com/kafadas/kinjo/internal/auth"
	"github.com/kafadas/kinjo/internal/metrics"
	"github.com/kafadas/kinjo/internal/reflection"
	"github.com/kafadas/kinjo/internal/services"
	"github.com/kafadas/kinjo/internal/trends"
)

// Deps are the services the router exposes.
type Deps struct {
	Auth        auth.Authenticator
	Trends      *trends.Service
	Reflections *reflection.Service
	Profiles    *services.ProfileService
	Moments     *services.MomentService
	Categories  *services.CategoryService
	People      *services.PeopleService
	Health      HealthReporter
	Metrics     *metrics.Metrics
}

// NewRouter wires HTTP routes to handlers. Everything under /api except the
// health probe requires a bearer key.
func NewRouter(d Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.New(d.Metrics))

	// Ops, unauthenticated
	root.HandleFunc("/api/health", NewHealthHandler(d.Health).CheckHealth).Methods("GET")
	if d.Metrics != nil {
		root.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}

	api := root.PathPrefix("/api").Subrouter()
	api.Use(Authenticate(d.Auth))

	// Trends
	tr := NewTrendsHandler(d.Trends)
	api.HandleFunc("/trends/daily", tr.Daily).Methods("GET")
	api.HandleFunc("/trends/categories", tr.Categories).Methods("GET")
	api.HandleFunc("/trends/gaps", tr.Gaps).Methods("GET")
	api.HandleFunc("/streak", tr.Streak).Methods("GET")

	// Reflections
	refl := NewReflectionHandler(d.Reflections)
	api.HandleFunc("/reflections/{period}", refl.Get).Methods("GET")
	api.HandleFunc("/reflections/{period}/regenerate", refl.Regenerate).Methods("POST")

	// Profile
	me := NewProfileHandler(d.Profiles)
	api.HandleFunc("/me", me.Get).Methods("GET")
	api.HandleFunc("/me", me.Put).Methods("PUT")

	// Moments
	mom := NewMomentHandler(d.Moments)
	api.HandleFunc("/moments", mom.Create).Methods("POST")
	api.HandleFunc("/moments/{momentId}", mom.Delete).Methods("DELETE")

	// Categories
	cat := NewCategoryHandler(d.Categories, d.Moments)
	api.HandleFunc("/categories", cat.List).Methods("GET")
	api.HandleFunc("/categories", cat.Create).Methods("POST")
	api.HandleFunc("/categories/{categoryId}/reassign", cat.Reassign).Methods("POST")

	// People
	ppl := NewPeopleHandler(d.People)
	api.HandleFunc("/people", ppl.List).Methods("GET")
	api.HandleFunc("/people", ppl.Create).Methods("POST")
	api.HandleFunc("/people/{personId}/merge", ppl.Merge).Methods("POST")

	return root
}
