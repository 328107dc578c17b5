package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/api/validate"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/services"
)

type PeopleHandler struct {
	svc *services.PeopleService
}

func NewPeopleHandler(svc *services.PeopleService) *PeopleHandler { return &PeopleHandler{svc: svc} }

// List handles GET /api/people
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ppl, err := h.svc.List(r.Context(), uid)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"people": ppl})
}

// Create handles POST /api/people
func (h *PeopleHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		DisplayName string   `json:"displayName"`
		Aliases     []string `json:"aliases,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Name("displayName", in.DisplayName); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), &model.Person{UserID: uid, DisplayName: in.DisplayName, Aliases: in.Aliases})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, p)
}

// Merge handles POST /api/people/{personId}/merge
func (h *PeopleHandler) Merge(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		Into string `json:"into"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	from := mux.Vars(r)["personId"]
	terminal, err := h.svc.Merge(r.Context(), uid, from, in.Into)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"personId": from, "mergedInto": terminal})
}

