package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AngelCh415/dmlab/internal/metrics"
)

func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	c, err := metrics.CriteriaFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	rep, err := h.svc.Report(r.Context(), c)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := metrics.CriteriaFromQuery(q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	limit, offset := metrics.PageFromQuery(q)
	page, err := h.svc.Breakdown(r.Context(), metrics.Dimension(q.Get("by")), c, limit, offset)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// goals reports weekly progress for the ISO week containing ?date (default today).
func (h *Handler) goals(w http.ResponseWriter, r *http.Request) {
	ref := h.now()
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			respondError(w, h.log, fmt.Errorf("%w: date must be YYYY-MM-DD", metrics.ErrBadQuery))
			return
		}
		ref = t
	}
	respondJSON(w, http.StatusOK, h.svc.WeeklyGoals(ref))
}

func (h *Handler) evaluation(w http.ResponseWriter, r *http.Request) {
	c, err := metrics.CriteriaFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	ev, err := h.svc.Evaluate(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"evaluation":         ev,
		"insufficientSample": ev.InsufficientSample(),
	})
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := metrics.BoardFilter{AccountID: q.Get("accountId")}
	if v := q.Get("oldLeads"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, h.log, fmt.Errorf("%w: oldLeads must be true or false", metrics.ErrBadQuery))
			return
		}
		f.OldLane = &b
	}
	respondJSON(w, http.StatusOK, h.svc.LeadBoard(f))
}
