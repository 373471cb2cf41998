package wsmarshaller

import (
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// WSFrame is the renderer-friendly form of a surface frame.
type WSFrame struct {
	SurfaceID string      `json:"surface_id"`
	Surface   string      `json:"surface,omitempty"`
	Seq       uint64      `json:"seq"`
	Messages  []WSMessage `json:"messages"`
	Dialog    WSDialog    `json:"dialog"`
}

type WSMessage struct {
	UseCaseID string               `json:"use_case_id"`
	Severity  string               `json:"severity"`
	Class     string               `json:"class"`
	HasCause  bool                 `json:"has_cause"`
	Popup     bool                 `json:"popup,omitempty"`
	Causes    []model.MessageCause `json:"causes,omitempty"`
}

type WSDialog struct {
	Visible           bool       `json:"visible"`
	Selected          *WSMessage `json:"selected,omitempty"`
	Description       string     `json:"description,omitempty"`
	RequestInProgress bool       `json:"request_in_progress"`
	TicketError       string     `json:"ticket_error,omitempty"`
}

// MapFrame converts a domain frame into its wire form.
func MapFrame(f *model.Frame) *WSFrame {
	res := &WSFrame{
		SurfaceID: f.SurfaceID.String(),
		Surface:   f.Name,
		Seq:       f.Seq,
		Messages:  make([]WSMessage, 0, len(f.Messages)),
		Dialog: WSDialog{
			Visible:           f.Dialog.Visible,
			Description:       f.Dialog.Description,
			RequestInProgress: f.Dialog.RequestInProgress,
			TicketError:       f.Dialog.TicketError,
		},
	}
	for i := range f.Messages {
		res.Messages = append(res.Messages, mapWrapper(&f.Messages[i]))
	}
	if f.Dialog.Selected != nil {
		sel := mapWrapper(f.Dialog.Selected)
		res.Dialog.Selected = &sel
	}
	return res
}

func mapWrapper(w *model.Wrapper) WSMessage {
	return WSMessage{
		UseCaseID: w.Message.UseCaseID,
		Severity:  w.Message.Severity.String(),
		Class:     string(w.Class),
		HasCause:  w.HasCause,
		Popup:     w.Message.ShouldPopup(),
		Causes:    w.Causes,
	}
}
