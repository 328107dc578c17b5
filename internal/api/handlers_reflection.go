package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/api/validate"
	"github.com/kafadas/kinjo/internal/reflection"
)

type ReflectionHandler struct {
	svc *reflection.Service
}

func NewReflectionHandler(svc *reflection.Service) *ReflectionHandler {
	return &ReflectionHandler{svc: svc}
}

// Get handles GET /api/reflections/{period}
func (h *ReflectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	period, err := validate.Period(mux.Vars(r)["period"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	refl, err := h.svc.GetOrGenerate(r.Context(), uid, period)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, refl)
}

// Regenerate handles POST /api/reflections/{period}/regenerate. A debounced
// request is answered with 204 and no body.
func (h *ReflectionHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	period, err := validate.Period(mux.Vars(r)["period"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	refl, err := h.svc.Regenerate(r.Context(), uid, period)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if refl == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond.WriteJSON(w, http.StatusOK, refl)
}
