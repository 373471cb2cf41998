package lp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-notice-service/internal/domain/model"
	"github.com/webitel/im-notice-service/internal/domain/registry"
	lpmarshaller "github.com/webitel/im-notice-service/internal/handler/marshaller/lp"
	"github.com/webitel/im-notice-service/internal/service"
)

type LPHandler struct {
	surfaces service.Surfacer
	timeout  time.Duration
}

func NewLPHandler(surfaces service.Surfacer, timeout time.Duration) *LPHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LPHandler{
		surfaces: surfaces,
		timeout:  timeout,
	}
}

// Poll handles the long-polling request.
// It answers at once when the surface moved past ?since=, otherwise it holds
// the connection until the next frame or the timeout.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = v
	}

	// 1. Temporary Subscription.
	// The connector lives only for the duration of this HTTP request.
	sf, conn, err := h.surfaces.Attach(r.Context(), chi.URLParam(r, "ref"), registry.ConnectMetadata{
		Transport: "lp",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer h.surfaces.Detach(sf, conn)

	var frames []*model.Frame

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	// 2. Wait for a frame newer than the client's.
wait:
	for {
		select {
		case <-r.Context().Done():
			// Client disconnected.
			return

		case <-timer.C:
			w.WriteHeader(http.StatusNoContent)
			return

		case f, ok := <-conn.Recv():
			if !ok {
				w.WriteHeader(http.StatusGone)
				return
			}
			if f.Seq <= since && since > 0 {
				continue
			}
			frames = append(frames, f)
			break wait
		}
	}

	// [BATCHING] whatever else is already queued
drainLoop:
	for range 15 {
		select {
		case f, ok := <-conn.Recv():
			if !ok {
				break drainLoop
			}
			frames = append(frames, f)
		default:
			break drainLoop
		}
	}

	// 3. Final transmission.
	data, err := lpmarshaller.MarshallFrames(frames)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
