// Package cause turns diagnostic payloads attached to a message into a
// MessageCause. Transform is total: it never panics and never fails.
package cause

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/webitel/im-notice-service/internal/domain/model"
)

// Payload is the tagged input of Transform. Callers state what they hold
// instead of letting the transform guess at runtime.
type Payload interface {
	isPayload()
}

// Raw carries an untyped diagnostic value (an error, a decoded JSON body,
// a primitive...).
type Raw struct {
	Value any
}

// Typed carries a cause that is already structured; it passes through.
type Typed struct {
	Cause model.MessageCause
}

// Response is a transport response wrapper. Its body is unwrapped first.
type Response struct {
	StatusCode int
	Body       []byte
}

func (Raw) isPayload()      {}
func (Typed) isPayload()    {}
func (Response) isPayload() {}

// Transform converts a payload into exactly one cause.
func Transform(p Payload) model.MessageCause {
	switch v := p.(type) {
	case Typed:
		return v.Cause
	case *Typed:
		if v != nil {
			return v.Cause
		}
	case Response:
		return fromResponse(v)
	case *Response:
		if v != nil {
			return fromResponse(*v)
		}
	case Raw:
		return fromValue(v.Value)
	case *Raw:
		if v != nil {
			return fromValue(v.Value)
		}
	}
	return generic(TechnicalText(nil))
}

// fromResponse unwraps the response body. A JSON body that already carries a
// "cause" field is the server-side cause itself.
func fromResponse(r Response) model.MessageCause {
	var decoded any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		text := strings.TrimSpace(string(r.Body))
		if text == "" {
			text = fmt.Sprintf("HTTP %d", r.StatusCode)
		}
		return generic(text)
	}
	return fromValue(decoded)
}

func fromValue(v any) model.MessageCause {
	switch c := v.(type) {
	case model.MessageCause:
		return c
	case *model.MessageCause:
		if c != nil {
			return *c
		}
	case map[string]any:
		if mc, ok := causeFromMap(c); ok {
			return mc
		}
	}
	return generic(TechnicalText(v))
}

// causeFromMap reads a cause-shaped map, i.e. one with a "cause" key. Fields
// are copied one by one so an unrelated unserializable entry cannot hide
// the cause. Both snake_case and camelCase keys are accepted.
func causeFromMap(m map[string]any) (mc model.MessageCause, ok bool) {
	raw, has := m["cause"]
	if !has {
		return mc, false
	}
	mc = model.MessageCause{
		MessageID:             stringField(m, "message_id", "messageId"),
		Category:              stringField(m, "category"),
		Cause:                 causeText(raw),
		Origin:                stringField(m, "origin"),
		Remediation:           stringField(m, "remediation"),
		CauseParameters:       stringsField(m, "cause_parameters", "causeParameters"),
		RemediationParameters: stringsField(m, "remediation_parameters", "remediationParameters"),
		TechnicalID:           stringField(m, "technical_id", "technicalId"),
		TechnicalText:         stringField(m, "technical_text", "technicalText"),
	}
	return mc, true
}

// causeText keeps a cause of the wrong shape: scalars print as-is, anything
// else goes through TechnicalText.
func causeText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return fmt.Sprint(x)
	}
	return TechnicalText(v)
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func stringsField(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch x := m[k].(type) {
		case []string:
			return append([]string(nil), x...)
		case []any:
			res := make([]string, 0, len(x))
			for _, item := range x {
				if s, ok := item.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
	}
	return nil
}

// generic leaves Category and Cause unset; renderers supply the
// "other error" labels.
func generic(technicalText string) model.MessageCause {
	return model.MessageCause{TechnicalText: technicalText}
}

// TechnicalText extracts best-effort diagnostic text from any value:
// its message, else its JSON form, else its own string conversion.
func TechnicalText(v any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fallbackString(v)
		}
	}()

	if msg, ok := messageField(v); ok {
		return msg
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fallbackString(v)
	}
	return string(data)
}

func messageField(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case error:
		if msg := x.Error(); msg != "" {
			return msg, true
		}
		return "", false
	case map[string]any:
		if msg, ok := x["message"].(string); ok && msg != "" {
			return msg, true
		}
		return "", false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	f := rv.FieldByName("Message")
	if f.IsValid() && f.Kind() == reflect.String && f.CanInterface() && f.String() != "" {
		return f.String(), true
	}
	return "", false
}

// fallbackString never recurses into containers, so cyclic values are safe.
func fallbackString(v any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("%T", v)
		}
	}()

	switch x := v.(type) {
	case nil:
		return "null"
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		return fmt.Sprintf("%T", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ErrPayload wraps a Go error as a Raw payload, or returns nil for a nil error.
func ErrPayload(err error) Payload {
	if err == nil {
		return nil
	}
	return Raw{Value: err}
}
