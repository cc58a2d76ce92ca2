package ops

import (
	"io"
	"net/http"
	"time"

	perr "animabook/internal/platform/errors"
	bf "animabook/internal/services/backfill/domain"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

type handlers struct {
	deps Deps
}

// cursorView is the wire shape for one backfill cursor
type cursorView struct {
	Name        string     `json:"name"`
	NextID      int64      `json:"next_id"`
	LastFoundID int64      `json:"last_found_id"`
	Misses      int        `json:"misses"`
	Active      bool       `json:"active"`
	LastRunAt   *time.Time   `json:"last_run_at,omitempty"`
	LastError   *string      `json:"last_error,omitempty"`
	LastRun     *bf.RunStats `json:"last_run,omitempty"`
}

func viewOf(c bf.Cursor) cursorView {
	return cursorView{
		Name:        c.Name,
		NextID:      c.NextID,
		LastFoundID: c.LastFoundID,
		Misses:      c.Misses,
		Active:      c.Active,
		LastRunAt:   c.LastRunAt,
		LastError:   c.LastError,
		LastRun:     c.LastRun,
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store != nil {
		if err := h.deps.Store.Guard(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "fail", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handlers) listCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := h.deps.Admin.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]cursorView, 0, len(cursors))
	for _, c := range cursors {
		out = append(out, viewOf(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cursors": out})
}

func (h *handlers) getCursor(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Admin.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *handlers) activateCursor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FromID int64 `json:"from_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.deps.Admin.Activate(r.Context(), name, body.FromID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "active": true})
}

func (h *handlers) deactivateCursor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.deps.Admin.Deactivate(r.Context(), name, body.Reason); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "active": false})
}

func (h *handlers) entityCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.Reader.CountByType(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *handlers) seedListing(w http.ResponseWriter, r *http.Request) {
	listing := chi.URLParam(r, "listing")
	if err := h.deps.Queue.EnqueueSeedListing(r.Context(), listing); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"listing": listing, "enqueued": true})
}

// decodeBody reads an optional json body; an empty body leaves dst zeroed
func decodeBody(r *http.Request, dst any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "read request body")
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, perr.HTTPStatus(err), map[string]any{"error": perr.WireFrom(err)})
}
