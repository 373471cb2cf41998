package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySeverity(t *testing.T) {
	cases := map[Severity]StyleClass{
		SeverityInfo:  StyleInfo,
		SeverityWarn:  StyleWarn,
		SeverityError: StyleError,
		SeverityFatal: StyleError,
		Severity(0):   StyleError,
	}
	for sev, want := range cases {
		assert.Equal(t, want, ClassifySeverity(sev), sev.String())
	}
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity(" fatal ")
	require.NoError(t, err)
	assert.Equal(t, SeverityFatal, s)

	_, err = ParseSeverity("DEBUG")
	assert.Error(t, err)
}

func TestMessage_ShouldPopup(t *testing.T) {
	assert.True(t, Message{Severity: SeverityFatal}.ShouldPopup())
	assert.True(t, Message{Severity: SeverityInfo, OpenPopupImmediately: true}.ShouldPopup())
	assert.False(t, Message{Severity: SeverityError}.ShouldPopup())
}

func TestMessage_JSONSeverityByName(t *testing.T) {
	raw := []byte(`{"use_case_id":"A","severity":"WARN","causes":[{"cause":"c1"}]}`)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "A", msg.UseCaseID)
	assert.Equal(t, SeverityWarn, msg.Severity)
	require.Len(t, msg.Causes, 1)
	assert.Equal(t, "c1", msg.Causes[0].Cause)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"LOUD"}`), &msg))
}

func TestWrapper_AppendCauses(t *testing.T) {
	w := NewWrapper(Message{UseCaseID: "A", Severity: SeverityWarn}, nil)
	assert.False(t, w.HasCause)
	assert.Equal(t, StyleWarn, w.Class)

	assert.False(t, w.AppendCauses(nil))

	assert.True(t, w.AppendCauses([]MessageCause{{Cause: "c1"}}))
	assert.True(t, w.AppendCauses([]MessageCause{{Cause: "c2"}, {Cause: "c3"}}))
	assert.True(t, w.HasCause)

	got := make([]string, 0, len(w.Causes))
	for _, c := range w.Causes {
		got = append(got, c.Cause)
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, got)
}

func TestWrapper_CloneIsDetached(t *testing.T) {
	causes := []MessageCause{{Cause: "c1", CauseParameters: []string{"p"}}}
	w := NewWrapper(Message{UseCaseID: "A", Severity: SeverityError}, causes)

	// the wrapper must not alias the producer's slice
	causes[0].Cause = "mutated"
	assert.Equal(t, "c1", w.Causes[0].Cause)

	snap := w.Clone()
	snap.Causes[0].CauseParameters[0] = "changed"
	assert.Equal(t, "p", w.Causes[0].CauseParameters[0])
}
