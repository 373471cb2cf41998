package wsmarshaller

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/webitel/im-notice-service/internal/domain/model"
)

const (
	EventFrame     = "frame"
	EventConnected = "connected"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string          `json:"event"` // "frame", "connected"
	ID      string          `json:"id"`    // surface id
	SentAt  int64           `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// ConnectedPayload is the first event of every session.
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
	SurfaceID    string `json:"surface_id"`
	Surface      string `json:"surface,omitempty"`
}

// MarshallFrame prepares a surface frame for WebSocket transmission.
func MarshallFrame(f *model.Frame) ([]byte, error) {
	return marshall(EventFrame, f.SurfaceID.String(), MapFrame(f))
}

func MarshallConnected(p ConnectedPayload) ([]byte, error) {
	return marshall(EventConnected, p.SurfaceID, p)
}

func marshall(kind, id string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ws marshaller: %s payload: %w", kind, err)
	}
	return json.Marshal(&WSEvent{
		Event:   kind,
		ID:      id,
		SentAt:  time.Now().UnixMilli(),
		Payload: data,
	})
}

// UnmarshallEvent decodes the envelope; the payload stays raw until the
// caller picks its type by Event.
func UnmarshallEvent(data []byte) (*WSEvent, error) {
	var ev WSEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("ws marshaller: envelope: %w", err)
	}
	return &ev, nil
}

// DecodeFrame reads the payload of a "frame" event.
func (ev *WSEvent) DecodeFrame() (*WSFrame, error) {
	if ev.Event != EventFrame {
		return nil, fmt.Errorf("ws marshaller: %q is not a frame event", ev.Event)
	}
	var f WSFrame
	if err := json.Unmarshal(ev.Payload, &f); err != nil {
		return nil, fmt.Errorf("ws marshaller: frame: %w", err)
	}
	return &f, nil
}
