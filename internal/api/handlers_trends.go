package api

import (
	"net/http"

	"github.com/kafadas/kinjo/internal/api/respond"
	"github.com/kafadas/kinjo/internal/api/validate"
	"github.com/kafadas/kinjo/internal/trends"
)

type TrendsHandler struct {
	svc *trends.Service
}

func NewTrendsHandler(svc *trends.Service) *TrendsHandler { return &TrendsHandler{svc: svc} }

// Daily handles GET /api/trends/daily
func (h *TrendsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := validate.TrendQuery(r.URL.Query())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	series, err := h.svc.DailyCounts(r.Context(), uid, q)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, series)
}

// Categories handles GET /api/trends/categories
func (h *TrendsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := validate.TrendQuery(r.URL.Query())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	shares, err := h.svc.CategoryShareDelta(r.Context(), uid, q)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": shares})
}

// Gaps handles GET /api/trends/gaps
func (h *TrendsHandler) Gaps(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q, err := validate.TrendQuery(r.URL.Query())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	gaps, err := h.svc.MedianGaps(r.Context(), uid, q)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"gaps": gaps})
}

// Streak handles GET /api/streak
func (h *TrendsHandler) Streak(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Streak(r.Context(), uid)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}
