package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/api/validate"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/services"
)

type MomentHandler struct {
	svc *services.MomentService
}

func NewMomentHandler(svc *services.MomentService) *MomentHandler { return &MomentHandler{svc: svc} }

// Create handles POST /api/moments
func (h *MomentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		HappenedAt   time.Time `json:"happenedAt"`
		Action       string    `json:"action"`
		CategoryID   *string   `json:"categoryId,omitempty"`
		PersonID     *string   `json:"personId,omitempty"`
		Significance bool      `json:"significance"`
		Tags         []string  `json:"tags,omitempty"`
		Description  string    `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	m := &model.Moment{
		UserID:       uid,
		HappenedAt:   in.HappenedAt,
		Action:       model.Action(in.Action),
		CategoryID:   in.CategoryID,
		PersonID:     in.PersonID,
		Significance: in.Significance,
		Tags:         in.Tags,
		Description:  in.Description,
	}
	if err := validate.Moment(m); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	out, err := h.svc.Create(r.Context(), m)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// Delete handles DELETE /api/moments/{momentId}
func (h *MomentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), uid, mux.Vars(r)["momentId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
