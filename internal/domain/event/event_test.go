package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

func TestNewAdd_CopiesProducerValues(t *testing.T) {
	msg := model.Message{UseCaseID: "A", Severity: model.SeverityError}
	causes := []model.MessageCause{{Cause: "c1"}}

	ev := NewAdd(msg, causes, model.TargetName("myName"))
	msg.UseCaseID = "B"
	causes[0].Cause = "changed"

	assert.Equal(t, Add, ev.Kind)
	assert.Equal(t, OriginLocal, ev.Origin)
	assert.Equal(t, "A", ev.UseCaseID())
	assert.Equal(t, "c1", ev.Causes[0].Cause)
	assert.Equal(t, "myName", ev.Target.Name())
	assert.NotEmpty(t, ev.ID)
}

func TestRoutingKeys(t *testing.T) {
	msg := model.Message{UseCaseID: "A"}

	assert.Equal(t, TopicMessageAdded, NewAdd(msg, nil, model.Target{}).GetRoutingKey())
	assert.Equal(t, TopicMessageRemoved, NewRemove(msg).GetRoutingKey())
	assert.Equal(t, TopicMessageCleared, NewRemoveAll().GetRoutingKey())
	assert.Empty(t, (&MessageEvent{}).GetRoutingKey())
	assert.Empty(t, NewRemoveAll().UseCaseID())
}

func TestMessageEvent_JSON(t *testing.T) {
	ev := NewAdd(model.Message{UseCaseID: "A", Severity: model.SeverityFatal}, nil, model.TargetName("x"))

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var back MessageEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, Add, back.Kind)
	assert.Equal(t, model.SeverityFatal, back.Message.Severity)
	assert.Equal(t, "x", back.Target.Name())
	// origin is process-local and never crosses the wire
	assert.Empty(t, back.Origin)
}
