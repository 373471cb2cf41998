package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notice-service/internal/domain/cause"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

func TestAddMessageCommand_ToDomain(t *testing.T) {
	raw := `{
		"message": {"use_case_id": "save", "severity": "error", "open_popup_immediately": true},
		"error": {"body": {"message": "disk full"}},
		"target": {"name": "main"}
	}`
	var cmd AddMessageCommand
	require.NoError(t, json.Unmarshal([]byte(raw), &cmd))

	args, err := cmd.ToDomain()
	require.NoError(t, err)

	assert.Equal(t, "save", args.Message.UseCaseID)
	assert.Equal(t, model.SeverityError, args.Message.Severity)
	assert.True(t, args.Message.OpenPopupImmediately)
	assert.Equal(t, model.TargetName("main"), args.Target)

	mc := cause.Transform(args.Error)
	assert.Equal(t, "disk full", mc.TechnicalText)
}

func TestAddMessageCommand_ResponseError(t *testing.T) {
	cmd := AddMessageCommand{
		Message: MessageDTO{UseCaseID: "load", Severity: "WARN"},
		Error:   &ErrorDTO{Status: 502, Body: json.RawMessage(`  `)},
	}
	args, err := cmd.ToDomain()
	require.NoError(t, err)

	resp, ok := args.Error.(cause.Response)
	require.True(t, ok)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, "HTTP 502", cause.Transform(args.Error).TechnicalText)
}

func TestAddMessageCommand_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  AddMessageCommand
	}{
		{"empty use case", AddMessageCommand{Message: MessageDTO{Severity: "INFO"}}},
		{"bad severity", AddMessageCommand{Message: MessageDTO{UseCaseID: "x", Severity: "LOUD"}}},
		{"bad surface id", AddMessageCommand{
			Message: MessageDTO{UseCaseID: "x", Severity: "INFO"},
			Target:  &TargetDTO{SurfaceID: "not-a-uuid"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cmd.ToDomain()
			assert.ErrorIs(t, err, ErrInvalidCommand)
		})
	}
}

func TestTargetDTO_BroadcastWhenEmpty(t *testing.T) {
	var nilTarget *TargetDTO
	tgt, err := nilTarget.ToDomain()
	require.NoError(t, err)
	assert.True(t, tgt.IsZero())

	tgt, err = (&TargetDTO{}).ToDomain()
	require.NoError(t, err)
	assert.True(t, tgt.IsZero())
}

func TestErrorDTO_FalsyBodyIsNoPayload(t *testing.T) {
	for _, body := range []string{"null", `""`, "false", "0", "0.0", " "} {
		assert.Nil(t, (&ErrorDTO{Body: json.RawMessage(body)}).ToPayload(), body)
	}
	assert.Nil(t, (*ErrorDTO)(nil).ToPayload())

	assert.Equal(t, cause.Raw{Value: "boom"}, (&ErrorDTO{Body: json.RawMessage(`"boom"`)}).ToPayload())
	assert.Equal(t, cause.Raw{Value: true}, (&ErrorDTO{Body: json.RawMessage("true")}).ToPayload())
}

func TestAddMessageCommand_FalsyErrorKeepsOwnCauses(t *testing.T) {
	var cmd AddMessageCommand
	require.NoError(t, json.Unmarshal([]byte(`{
		"message": {"use_case_id": "save", "severity": "WARN", "causes": [{"cause": "own"}]},
		"error": {"body": ""}
	}`), &cmd))

	args, err := cmd.ToDomain()
	require.NoError(t, err)
	assert.Nil(t, args.Error)
	require.Len(t, args.Message.Causes, 1)
	assert.Equal(t, "own", args.Message.Causes[0].Cause)
}
