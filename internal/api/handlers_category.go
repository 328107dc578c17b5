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

type CategoryHandler struct {
	svc     *services.CategoryService
	moments *services.MomentService
}

func NewCategoryHandler(svc *services.CategoryService, moments *services.MomentService) *CategoryHandler {
	return &CategoryHandler{svc: svc, moments: moments}
}

// List handles GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	cats, err := h.svc.List(r.Context(), uid)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": cats})
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		Name      string `json:"name"`
		Slug      string `json:"slug,omitempty"`
		SortOrder int    `json:"sortOrder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Name("name", in.Name); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), &model.Category{UserID: uid, Name: in.Name, Slug: in.Slug, SortOrder: in.SortOrder})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, c)
}

// Reassign handles POST /api/categories/{categoryId}/reassign
func (h *CategoryHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var in struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.NonEmpty("to", in.To); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	n, err := h.moments.ReassignCategory(r.Context(), uid, mux.Vars(r)["categoryId"], in.To)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"moved": n})
}
