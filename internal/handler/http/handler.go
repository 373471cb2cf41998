// Package httphandler exposes producers and renderers over HTTP.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/domain/registry"
	"github.com/webitel/im-notice-service/internal/handler/lp"
	wsmarshaller "github.com/webitel/im-notice-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-notice-service/internal/handler/ws"
	"github.com/webitel/im-notice-service/internal/metrics"
	"github.com/webitel/im-notice-service/internal/service"
	"github.com/webitel/im-notice-service/internal/service/dto"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	notifier service.Notifier
	surfaces service.Surfacer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	ws       *ws.WSHandler
	lp       *lp.LPHandler
}

func NewHandler(
	notifier service.Notifier,
	surfaces service.Surfacer,
	m *metrics.Metrics,
	logger *slog.Logger,
	wsh *ws.WSHandler,
	lph *lp.LPHandler,
) *Handler {
	return &Handler{notifier: notifier, surfaces: surfaces, metrics: m, logger: logger, ws: wsh, lp: lph}
}

// Routes builds the chi router. {ref} is a surface id or a surface name.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.addMessage)
			r.Delete("/", h.removeAllMessages)
			r.Delete("/{useCaseID}", h.removeMessage)
		})

		r.Route("/surfaces", func(r chi.Router) {
			r.Post("/", h.openSurface)
			r.Get("/", h.listSurfaces)

			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", h.getSurface)
				r.Method(http.MethodGet, "/ws", h.ws)
				r.Get("/poll", h.lp.Poll)

				r.Post("/selection", h.selectMessage)
				r.Delete("/selection", h.dismiss)
				r.Put("/selection/description", h.describe)
				r.Post("/selection/ticket", h.submitTicket)
			})
		})
	})
	return r
}

// --- producers ---

func (h *Handler) addMessage(w http.ResponseWriter, r *http.Request) {
	var cmd dto.AddMessageCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	args, err := cmd.ToDomain()
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.notifier.Add(r.Context(), args); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.Remove(r.Context(), chi.URLParam(r, "useCaseID")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeAllMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.RemoveAll(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- surfaces ---

type openSurfaceRequest struct {
	Name string `json:"name"`
}

type surfaceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (h *Handler) openSurface(w http.ResponseWriter, r *http.Request) {
	var req openSurfaceRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	sf, err := h.surfaces.Open(req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, surfaceResponse{ID: sf.ID().String(), Name: sf.Name()})
}

func (h *Handler) listSurfaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.surfaces.Stats())
}

func (h *Handler) getSurface(w http.ResponseWriter, r *http.Request) {
	frame, err := h.surfaces.Snapshot(chi.URLParam(r, "ref"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapFrame(&frame))
}

type selectRequest struct {
	UseCaseID string `json:"use_case_id"`
}

func (h *Handler) selectMessage(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.surfaces.Select(chi.URLParam(r, "ref"), req.UseCaseID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.surfaces.Dismiss(chi.URLParam(r, "ref")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type describeRequest struct {
	Description string `json:"description"`
}

func (h *Handler) describe(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.surfaces.Describe(chi.URLParam(r, "ref"), req.Description); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitTicket answers 202: the outcome reaches renderers through frames.
func (h *Handler) submitTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.surfaces.SubmitTicket(r.Context(), chi.URLParam(r, "ref")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

// --- plumbing ---

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("HTTP_REQUEST_FAILED", "err", err)
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, dto.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrSurfaceNotFound),
		errors.Is(err, service.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, dialog.ErrNotVisible),
		errors.Is(err, dialog.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, dialog.ErrTicketNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and RequestID.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug("HTTP_REQUEST_HANDLED",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
