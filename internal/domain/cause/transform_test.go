package cause

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

type node struct {
	Name string
	Next *node
}

type panickyErr struct{}

func (*panickyErr) Error() string { panic("boom") }

type withMessage struct {
	Message string
	Code    int
}

type stringerFunc func() string

func (f stringerFunc) String() string { return f() }

func TestTransform_NeverPanics(t *testing.T) {
	cyclicMap := map[string]any{"name": "loop"}
	cyclicMap["self"] = cyclicMap

	cyclicPtr := &node{Name: "a"}
	cyclicPtr.Next = cyclicPtr

	payloads := map[string]Payload{
		"nil payload":       nil,
		"raw nil":           Raw{},
		"message map":       Raw{Value: map[string]any{"message": "boom"}},
		"cyclic map":        Raw{Value: cyclicMap},
		"cyclic pointer":    Raw{Value: cyclicPtr},
		"cause shaped":      Raw{Value: map[string]any{"cause": "c"}},
		"response":          Response{StatusCode: 500, Body: []byte(`{"cause":"c","category":"db"}`)},
		"response garbage":  Response{StatusCode: 502, Body: []byte("<html>bad gateway</html>")},
		"response empty":    &Response{StatusCode: 504},
		"panicking error":   Raw{Value: (*panickyErr)(nil)},
		"channel":           Raw{Value: make(chan int)},
		"func":              Raw{Value: func() {}},
		"typed":             Typed{Cause: model.MessageCause{Cause: "typed"}},
		"nil typed pointer": (*Typed)(nil),
		"primitive":         Raw{Value: 42},
	}

	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() { _ = Transform(p) })
		})
	}
}

func TestTransform_MessageFieldVerbatim(t *testing.T) {
	c := Transform(Raw{Value: map[string]any{"message": "boom", "code": 7}})
	assert.Equal(t, "boom", c.TechnicalText)
	assert.Empty(t, c.Category)
	assert.Empty(t, c.Cause)

	c = Transform(Raw{Value: errors.New("disk full")})
	assert.Equal(t, "disk full", c.TechnicalText)

	c = Transform(Raw{Value: &withMessage{Message: "struct boom", Code: 3}})
	assert.Equal(t, "struct boom", c.TechnicalText)
}

func TestTransform_SerializesWithoutMessage(t *testing.T) {
	c := Transform(Raw{Value: map[string]any{"code": 7}})
	assert.Equal(t, `{"code":7}`, c.TechnicalText)

	c = Transform(Raw{Value: "plain"})
	assert.Equal(t, `"plain"`, c.TechnicalText)

	c = Transform(Raw{})
	assert.Equal(t, "null", c.TechnicalText)
}

func TestTransform_FallsBackOnSerializationFailure(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	assert.Equal(t, "map[string]interface {}", Transform(Raw{Value: cyclic}).TechnicalText)

	ch := make(chan int)
	assert.Equal(t, fmt.Sprintf("%v", ch), Transform(Raw{Value: ch}).TechnicalText)

	s := stringerFunc(func() string { return "custom text" })
	assert.Equal(t, "custom text", Transform(Raw{Value: s}).TechnicalText)

	assert.Equal(t, "*cause.panickyErr", Transform(Raw{Value: (*panickyErr)(nil)}).TechnicalText)
}

func TestTransform_PassThrough(t *testing.T) {
	typed := model.MessageCause{Category: "db", Cause: "timeout", TechnicalID: "E42"}
	assert.Equal(t, typed, Transform(Typed{Cause: typed}))
	assert.Equal(t, typed, Transform(Raw{Value: typed}))
	assert.Equal(t, typed, Transform(Raw{Value: &typed}))

	c := Transform(Raw{Value: map[string]any{"cause": "c"}})
	assert.Equal(t, model.MessageCause{Cause: "c"}, c)

	c = Transform(Raw{Value: map[string]any{"cause": 12}})
	assert.Equal(t, "12", c.Cause)
}

func TestTransform_CauseMapWithCycleKeepsFields(t *testing.T) {
	m := map[string]any{
		"cause":            "disk full",
		"category":         "storage",
		"messageId":        "M1",
		"cause_parameters": []any{"/var", 3, "90%"},
	}
	m["self"] = m

	c := Transform(Raw{Value: m})
	assert.Equal(t, model.MessageCause{
		MessageID:       "M1",
		Category:        "storage",
		Cause:           "disk full",
		CauseParameters: []string{"/var", "90%"},
	}, c)
}

func TestTransform_CauseOfWrongShapeIsKept(t *testing.T) {
	c := Transform(Raw{Value: map[string]any{"cause": map[string]any{"message": "nested"}}})
	assert.Equal(t, "nested", c.Cause)

	c = Transform(Raw{Value: map[string]any{"cause": true, "category": 7}})
	assert.Equal(t, model.MessageCause{Cause: "true"}, c)
}

func TestTransform_UnwrapsResponse(t *testing.T) {
	c := Transform(Response{StatusCode: 500, Body: []byte(`{"cause":"c","category":"db","technical_id":"E1"}`)})
	assert.Equal(t, model.MessageCause{Cause: "c", Category: "db", TechnicalID: "E1"}, c)

	c = Transform(Response{StatusCode: 500, Body: []byte(`{"message":"internal"}`)})
	assert.Equal(t, "internal", c.TechnicalText)

	c = Transform(Response{StatusCode: 502, Body: []byte(" bad gateway ")})
	assert.Equal(t, "bad gateway", c.TechnicalText)

	c = Transform(Response{StatusCode: 504})
	assert.Equal(t, "HTTP 504", c.TechnicalText)
}

func TestErrPayload(t *testing.T) {
	assert.Nil(t, ErrPayload(nil))
	assert.Equal(t, "wrapped: inner", Transform(ErrPayload(fmt.Errorf("wrapped: %w", errors.New("inner")))).TechnicalText)
}
