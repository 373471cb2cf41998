package ws

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-notice-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-notice-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-notice-service/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type WSHandler struct {
	logger   *slog.Logger
	surfaces service.Surfacer
	upgrader websocket.Upgrader
}

// NewWSHandler accepts every origin when allowedOrigins is empty.
func NewWSHandler(logger *slog.Logger, surfaces service.Surfacer, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		logger:   logger,
		surfaces: surfaces,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	// 1. ATTACH BEFORE UPGRADE so an unknown surface is still a plain 404
	sf, conn, err := h.surfaces.Attach(r.Context(), ref, registry.ConnectMetadata{
		Transport: "ws",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer h.surfaces.Detach(sf, conn)

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "err", err)
		return
	}
	defer ws.Close()

	h.logger.Info("WS_OPENED", "surface_id", sf.ID().String(), "conn_id", conn.GetID())
	defer h.logger.Info("WS_CLOSED", "surface_id", sf.ID().String(), "conn_id", conn.GetID(), "dropped", conn.Dropped())

	hello, err := wsmarshaller.MarshallConnected(wsmarshaller.ConnectedPayload{
		ConnectionID: conn.GetID().String(),
		SurfaceID:    sf.ID().String(),
		Surface:      sf.Name(),
	})
	if err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}
	}

	// 3. READ PUMP: control frames and close detection only
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case f, ok := <-conn.Recv():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "surface closed"),
					time.Now().Add(writeWait))
				return
			}

			data, err := wsmarshaller.MarshallFrame(f)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", "err", err)
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WS_SEND_FAILED", "err", err)
				return
			}
		}
	}
}
