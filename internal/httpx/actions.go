package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

func (h *Handler) addLog(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLog(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	l, err := h.st.AddLog(in)
	h.respondMutation(w, r, http.StatusCreated, l, err)
}

func (h *Handler) updateLog(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLog(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	l, err := h.st.UpdateLog(chi.URLParam(r, "id"), in)
	h.respondMutation(w, r, http.StatusOK, l, err)
}

func (h *Handler) deleteLog(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, http.StatusNoContent, nil, h.st.DeleteLog(chi.URLParam(r, "id")))
}

func (h *Handler) putTargets(w http.ResponseWriter, r *http.Request) {
	var req targetsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	t, err := h.st.UpdateTargets(req.model())
	h.respondMutation(w, r, http.StatusOK, t, err)
}

func (h *Handler) putFlags(w http.ResponseWriter, r *http.Request) {
	var req store.Flags
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.st.SetFlags(req); err != nil {
		respondError(w, h.log, err)
		return
	}
	cfg := h.st.Snapshot().Config
	h.respondMutation(w, r, http.StatusOK, map[string]bool{
		"excludeOldLeadsFromKpi": cfg.ExcludeOldLeadsFromKpi,
		"autosave":               cfg.Autosave,
	}, nil)
}

func (h *Handler) addAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	a, err := h.st.AddAccount(models.Account{ID: req.ID, Name: req.Name, WeeklyGoals: req.WeeklyGoals.model()})
	h.respondMutation(w, r, http.StatusCreated, a, err)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	a, err := h.st.UpdateAccount(chi.URLParam(r, "id"), req.input())
	h.respondMutation(w, r, http.StatusOK, a, err)
}

func (h *Handler) renameAccount(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.st.RenameAccount(chi.URLParam(r, "id"), req.NewID); err != nil {
		respondError(w, h.log, err)
		return
	}
	a, _ := h.st.Snapshot().Config.Account(req.NewID)
	h.respondMutation(w, r, http.StatusOK, a, nil)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, http.StatusNoContent, nil, h.st.DeleteAccount(chi.URLParam(r, "id")))
}

func (h *Handler) addExperiment(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	exp, err := h.st.AddExperiment(req.input())
	h.respondMutation(w, r, http.StatusCreated, exp, err)
}

func (h *Handler) updateExperiment(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	exp, err := h.st.UpdateExperiment(chi.URLParam(r, "id"), req.input())
	h.respondMutation(w, r, http.StatusOK, exp, err)
}

func (h *Handler) deleteExperiment(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, http.StatusNoContent, nil, h.st.DeleteExperiment(chi.URLParam(r, "id")))
}

func (h *Handler) addVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	v, err := h.st.AddVariant(chi.URLParam(r, "id"), req.model())
	h.respondMutation(w, r, http.StatusCreated, v, err)
}

func (h *Handler) removeVariant(w http.ResponseWriter, r *http.Request) {
	err := h.st.RemoveVariant(chi.URLParam(r, "id"), chi.URLParam(r, "variantId"))
	h.respondMutation(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) addProspect(w http.ResponseWriter, r *http.Request) {
	var req prospectRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	p, err := h.st.AddProspect(req.model())
	h.respondMutation(w, r, http.StatusCreated, p, err)
}

func (h *Handler) updateProspect(w http.ResponseWriter, r *http.Request) {
	var req prospectRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	p, err := h.st.UpdateProspect(chi.URLParam(r, "id"), req.model())
	h.respondMutation(w, r, http.StatusOK, p, err)
}

func (h *Handler) moveProspect(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	p, err := h.st.MoveProspect(chi.URLParam(r, "id"), models.FunnelStage(req.Stage))
	h.respondMutation(w, r, http.StatusOK, p, err)
}

func (h *Handler) deleteProspect(w http.ResponseWriter, r *http.Request) {
	h.respondMutation(w, r, http.StatusNoContent, nil, h.st.DeleteProspect(chi.URLParam(r, "id")))
}

// respondMutation reports the action result and triggers autosave on success.
func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	h.changed(r.Context())
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	respondJSON(w, status, body)
}
