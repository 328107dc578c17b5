package api

import (
	"encoding/json"
	"net/http"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/api/validate"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/services"
)

type ProfileHandler struct {
	svc *services.ProfileService
}

func NewProfileHandler(svc *services.ProfileService) *ProfileHandler { return &ProfileHandler{svc: svc} }

// Get handles GET /api/me
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), uid)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

// Put handles PUT /api/me
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		DisplayName *string `json:"displayName,omitempty"`
		TimeZone    string  `json:"timeZone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.DisplayName != nil {
		if err := validate.MaxLen("displayName", *in.DisplayName, 80); err != nil {
			respond.WriteServiceError(w, err)
			return
		}
	}
	u, err := h.svc.Upsert(r.Context(), &model.User{UserID: uid, DisplayName: in.DisplayName, TimeZone: in.TimeZone})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}
