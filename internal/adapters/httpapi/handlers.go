package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/ports"
	"github.com/xvierd/thirdtime/internal/services"
)

const defaultHistoryWindow = 7 * 24 * time.Hour

type handler struct {
	controller ports.CycleController
	history    *services.HistoryService
	logger     *slog.Logger
	now        func() time.Time
}

func newHandler(controller ports.CycleController, history *services.HistoryService, opts RouterOptions) *handler {
	h := &handler{
		controller: controller,
		history:    history,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// GetState handles GET /api/state.
func (h *handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.State(r.Context())
	})
}

// Start handles POST /api/start.
func (h *handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.StartWork(r.Context(), ports.StartWorkRequest{
			Label:      req.Label,
			Preset:     req.Preset,
			Deadline:   req.Deadline,
			WorkingDir: req.WorkingDir,
		})
	})
}

// EndIn handles POST /api/end-in.
func (h *handler) EndIn(w http.ResponseWriter, r *http.Request) {
	var req MinutesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Minutes == nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "minutes is required")
		return
	}
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.EndIn(r.Context(), *req.Minutes)
	})
}

// EndAt handles POST /api/end-at.
func (h *handler) EndAt(w http.ResponseWriter, r *http.Request) {
	var req EndAtRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r, func() (*domain.CurrentState, error) {
		at, err := config.ParseEndAt(req.At, h.now())
		if err != nil {
			return nil, err
		}
		return h.controller.EndAt(r.Context(), at)
	})
}

// EndNow handles POST /api/end-now.
func (h *handler) EndNow(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.EndNow(r.Context())
	})
}

// LongBreak handles POST /api/long-break. Without minutes the configured
// length is used.
func (h *handler) LongBreak(w http.ResponseWriter, r *http.Request) {
	var req MinutesRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	minutes := 0.0
	if req.Minutes != nil {
		minutes = *req.Minutes
	}
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.StartLongBreak(r.Context(), minutes)
	})
}

// Kill handles POST /api/kill.
func (h *handler) Kill(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func() (*domain.CurrentState, error) {
		return h.controller.Kill(r.Context())
	})
}

// GetHistory handles GET /api/history?since=RFC3339&search=q&limit=n.
func (h *handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	since, limit, ok := h.historyParams(w, r)
	if !ok {
		return
	}

	var intervals []*domain.IntervalRecord
	var err error
	if q := r.URL.Query().Get("search"); q != "" {
		intervals, err = h.history.SearchIntervals(r.Context(), q, since, limit)
	} else {
		intervals, err = h.history.RecentIntervals(r.Context(), since, limit)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]*IntervalDTO, 0, len(intervals))
	for _, iv := range intervals {
		dtos = append(dtos, NewIntervalDTO(iv))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBank handles GET /api/bank?since=RFC3339.
func (h *handler) GetBank(w http.ResponseWriter, r *http.Request) {
	since, _, ok := h.historyParams(w, r)
	if !ok {
		return
	}
	entries, err := h.history.BankHistory(r.Context(), since)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]BankEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, NewBankEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *handler) historyParams(w http.ResponseWriter, r *http.Request) (time.Time, int, bool) {
	since := h.now().Add(-defaultHistoryWindow)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidArgument, "since must be RFC3339")
			return time.Time{}, 0, false
		}
		since = t
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidArgument, "limit must be a non-negative integer")
			return time.Time{}, 0, false
		}
		limit = n
	}
	return since, limit, true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, fn func() (*domain.CurrentState, error)) {
	state, err := fn()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStateDTO(state))
}

func (h *handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusBadRequest, codeConfiguration, err.Error())
	case errors.Is(err, domain.ErrIntervalAlreadyActive):
		writeError(w, http.StatusConflict, codeAlreadyActive, err.Error())
	case errors.Is(err, domain.ErrIntervalNotFound), errors.Is(err, domain.ErrNoActiveInterval):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
