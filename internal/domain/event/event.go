package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

//go:generate stringer -type=Kind
type Kind int16

const (
	Add       Kind = iota + 1 // [MESSAGE] new message or additional causes
	Remove                    // [MESSAGE] drop one message by use case
	RemoveAll                 // [SURFACE] clear every list
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "ADD"
	case Remove:
		return "REMOVE"
	case RemoveAll:
		return "REMOVE_ALL"
	default:
		return fmt.Sprintf("Kind(%d)", int16(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ADD":
		*k = Add
	case "REMOVE":
		*k = Remove
	case "REMOVE_ALL":
		*k = RemoveAll
	default:
		return fmt.Errorf("unknown event kind %q", text)
	}
	return nil
}

// Origin tells locally produced events apart from ones mirrored from the broker.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginBroker Origin = "broker"
)

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// If it returns an empty string, the dispatcher will skip publishing.
	GetRoutingKey() string
}

var _ Exportable = (*MessageEvent)(nil)

// MessageEvent is the bus payload. It is never mutated after publication.
type MessageEvent struct {
	ID         string               `json:"id"`
	Kind       Kind                 `json:"kind"`
	Message    *model.Message       `json:"message,omitempty"` // nil for RemoveAll
	Causes     []model.MessageCause `json:"causes,omitempty"`  // only meaningful for Add
	Target     model.Target         `json:"target"`
	Origin     Origin               `json:"-"`
	OccurredAt int64                `json:"occurred_at"`
}

func newEvent(kind Kind) *MessageEvent {
	return &MessageEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Origin:     OriginLocal,
		OccurredAt: time.Now().UnixMilli(),
	}
}

// NewAdd builds an ADD event. The message and causes are copied so the
// producer may keep mutating its own values.
func NewAdd(msg model.Message, causes []model.MessageCause, target model.Target) *MessageEvent {
	ev := newEvent(Add)
	m := msg.Clone()
	ev.Message = &m
	ev.Causes = model.CloneCauses(causes)
	ev.Target = target
	return ev
}

func NewRemove(msg model.Message) *MessageEvent {
	ev := newEvent(Remove)
	m := msg.Clone()
	ev.Message = &m
	return ev
}

func NewRemoveAll() *MessageEvent {
	return newEvent(RemoveAll)
}

func (e *MessageEvent) GetID() string { return e.ID }

// UseCaseID returns the identity of the carried message, or "" for RemoveAll.
func (e *MessageEvent) UseCaseID() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.UseCaseID
}

// GetRoutingKey generates the broker topic.
// [PATTERN] im_notice.message.{added|removed|cleared}
func (e *MessageEvent) GetRoutingKey() string {
	switch e.Kind {
	case Add:
		return TopicMessageAdded
	case Remove:
		return TopicMessageRemoved
	case RemoveAll:
		return TopicMessageCleared
	default:
		return ""
	}
}

const (
	TopicMessageAdded   = "im_notice.message.added"
	TopicMessageRemoved = "im_notice.message.removed"
	TopicMessageCleared = "im_notice.message.cleared"
)
