// Package status serves a read-only HTTP view of the running client.
package status

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"coach-client/internal/coach"
	"coach-client/internal/journal"
	"coach-client/internal/platform/metrics"
	"coach-client/internal/widget"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultRunsLimit = 20

// Sources are what the handler reports on. Frames and Journal are optional.
type Sources struct {
	Controller interface{ Status() coach.Status }
	View       interface{ Snapshot() coach.ViewSnapshot }
	Widgets    interface{ Widgets() widget.Set }
	Frames     interface{ WritePNG(w io.Writer) error }
	Journal    journal.Store
}

// Handler exposes status endpoints using go-chi.
type Handler struct {
	src     Sources
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil.
func NewHandler(src Sources, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{src: src, log: log, metrics: m}
}

type statusResponse struct {
	coach.Status
	View    coach.ViewSnapshot `json:"view"`
	Widgets widget.Set         `json:"widgets"`
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:  h.src.Controller.Status(),
		View:    h.src.View.Snapshot(),
		Widgets: h.src.Widgets.Widgets(),
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetFrame handles GET /frame.png.
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	if h.src.Frames == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.src.Frames.WritePNG(w); err != nil {
		h.metrics.IncStatusFailure("frame_encode")
		h.log.Error("encode frame failed", slog.String("error", err.Error()))
	}
}

// ListRuns handles GET /runs?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.src.Journal == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.src.Journal.ListRuns(r.Context(), limit)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	journal.Run
	Exercises []journal.ExerciseRecord `json:"exercises"`
}

// GetRun handles GET /runs/{run_id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.src.Journal == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	run, err := h.src.Journal.GetRun(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	exercises, err := h.src.Journal.ListExercises(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runResponse{Run: run, Exercises: exercises})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, journal.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.metrics.IncStatusFailure("journal_read")
	h.log.Error("journal read failed", slog.String("error", err.Error()))
	w.WriteHeader(http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}
