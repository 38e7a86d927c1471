package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/export"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/models"
)

type saveResponse struct {
	Revision        uint64   `json:"revision"`
	SavedAt         string   `json:"savedAt,omitempty"`
	Persisted       bool     `json:"persisted"`
	DetectedVersion int      `json:"detectedVersion"`
	Migrations      []string `json:"migrations"`
}

// getData returns the current state wrapped in the persisted envelope.
func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	env, rev := h.st.Envelope(h.now())
	w.Header().Set("X-State-Revision", fmt.Sprint(rev))
	respondJSON(w, http.StatusOK, env)
}

// save accepts any state shape, normalizes it, replaces the state and persists.
// An empty body persists the current state unchanged.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, h.log, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	resp := saveResponse{DetectedVersion: models.CurrentSchemaVersion, Migrations: []string{}}
	restore := func() {}
	if len(bytes.TrimSpace(b)) > 0 {
		if !json.Valid(b) {
			respondError(w, h.log, fmt.Errorf("%w: body is not valid JSON", errBadBody))
			return
		}
		st, rep := ingest.NormalizeJSON(b)
		prev, rev := h.st.Replace(st)
		restore = func() {
			if h.st.Rollback(rev, prev) {
				h.log.Warn("save failed, previous state restored", zap.Uint64("revision", rev))
			}
		}
		resp.DetectedVersion = rep.DetectedVersion
		if rep.Migrations != nil {
			resp.Migrations = rep.Migrations
		}
		if rep.Migrated() {
			h.log.Info("saved payload migrated", zap.Int("detected_version", rep.DetectedVersion), zap.Strings("migrations", rep.Migrations))
		}
	}
	if h.pm != nil {
		if err := h.pm.Save(r.Context()); err != nil {
			restore()
			respondError(w, h.log, err)
			return
		}
		resp.Persisted = true
	}
	env, rev := h.st.Envelope(h.now())
	resp.Revision = rev
	if resp.Persisted {
		resp.SavedAt = env.SavedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) syncPull(w http.ResponseWriter, r *http.Request) {
	sy, err := h.syncer()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	st, rep, err := sy.Pull(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	h.st.Replace(st)
	h.changed(r.Context())
	migrations := rep.Migrations
	if migrations == nil {
		migrations = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"revision":        h.st.Revision(),
		"logs":            len(st.Logs),
		"detectedVersion": rep.DetectedVersion,
		"migrations":      migrations,
	})
}

func (h *Handler) syncPush(w http.ResponseWriter, r *http.Request) {
	sy, err := h.syncer()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	env, rev := h.st.Envelope(h.now())
	if err := sy.Push(r.Context(), env); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"revision": rev, "savedAt": env.SavedAt})
}

// exportCSV writes the logs matching the query filters. The configured old-leads
// policy is not applied; oldLeads=exclude|only narrows explicitly.
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	c, err := metrics.CriteriaFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	logs := kpi.Filter(h.st.Snapshot().Logs, c)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dmlab-logs.csv"`)
	if err := export.WriteCSV(w, logs); err != nil {
		h.log.Error("csv export failed", zap.Error(err))
	}
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	logs, rep, err := export.ReadCSV(r.Body)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	added, err := h.st.ImportLogs(logs)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	h.changed(r.Context())
	respondJSON(w, http.StatusCreated, map[string]any{
		"imported":        len(added),
		"detectedVersion": rep.DetectedVersion,
		"revision":        h.st.Revision(),
	})
}
