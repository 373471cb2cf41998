// Package dto holds the JSON command payloads producers send over HTTP and AMQP.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/webitel/im-notice-service/internal/domain/cause"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

var ErrInvalidCommand = errors.New("invalid command")

type MessageDTO struct {
	UseCaseID            string               `json:"use_case_id"`
	Severity             string               `json:"severity"`
	Causes               []model.MessageCause `json:"causes,omitempty"`
	OpenPopupImmediately bool                 `json:"open_popup_immediately,omitempty"`
}

// TargetDTO addresses one surface. Both fields empty means broadcast.
type TargetDTO struct {
	SurfaceID string `json:"surface_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ErrorDTO is a diagnostic attached to an ADD. With a status it is treated
// as a transport response whose body must be unwrapped first.
type ErrorDTO struct {
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body"`
}

// [RABBIT_V1] im_notice.command.add / POST /v1/messages
type AddMessageCommand struct {
	Message MessageDTO `json:"message"`
	Error   *ErrorDTO  `json:"error,omitempty"`
	Target  *TargetDTO `json:"target,omitempty"`
}

// [RABBIT_V1] im_notice.command.remove
type RemoveMessageCommand struct {
	UseCaseID string `json:"use_case_id"`
}

// [RABBIT_V1] im_notice.command.remove_all carries no fields.
type RemoveAllCommand struct{}

func (d MessageDTO) ToDomain() (model.Message, error) {
	if strings.TrimSpace(d.UseCaseID) == "" {
		return model.Message{}, fmt.Errorf("%w: use_case_id is required", ErrInvalidCommand)
	}
	sev, err := model.ParseSeverity(d.Severity)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return model.Message{
		UseCaseID:            d.UseCaseID,
		Severity:             sev,
		Causes:               model.CloneCauses(d.Causes),
		OpenPopupImmediately: d.OpenPopupImmediately,
	}, nil
}

func (d *TargetDTO) ToDomain() (model.Target, error) {
	if d == nil {
		return model.Target{}, nil
	}
	if d.SurfaceID != "" {
		id, err := model.ParseSurfaceID(d.SurfaceID)
		if err != nil {
			return model.Target{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return model.TargetSurface(id), nil
	}
	if d.Name != "" {
		return model.TargetName(d.Name), nil
	}
	return model.Target{}, nil
}

// ToPayload returns nil when no diagnostic was attached. Falsy JSON bodies
// (null, "", false, 0) count as no diagnostic.
func (d *ErrorDTO) ToPayload() cause.Payload {
	if d == nil {
		return nil
	}
	body := bytes.TrimSpace(d.Body)
	if d.Status > 0 {
		return cause.Response{StatusCode: d.Status, Body: body}
	}
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return cause.Raw{Value: string(body)}
	}
	if isFalsy(v) {
		return nil
	}
	return cause.Raw{Value: v}
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	}
	return false
}

// AddArgs is the validated domain form of an AddMessageCommand.
type AddArgs struct {
	Message model.Message
	Error   cause.Payload
	Target  model.Target
}

func (c *AddMessageCommand) ToDomain() (AddArgs, error) {
	msg, err := c.Message.ToDomain()
	if err != nil {
		return AddArgs{}, err
	}
	target, err := c.Target.ToDomain()
	if err != nil {
		return AddArgs{}, err
	}
	return AddArgs{Message: msg, Error: c.Error.ToPayload(), Target: target}, nil
}

func (c *RemoveMessageCommand) Validate() error {
	if strings.TrimSpace(c.UseCaseID) == "" {
		return fmt.Errorf("%w: use_case_id is required", ErrInvalidCommand)
	}
	return nil
}
