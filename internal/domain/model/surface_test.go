package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_Matches(t *testing.T) {
	self := NewSurfaceID()
	other := NewSurfaceID()

	assert.True(t, Target{}.Matches(self, "myName"), "broadcast reaches everyone")
	assert.True(t, TargetName("myName").Matches(self, "myName"))
	assert.False(t, TargetName("myName").Matches(self, "other"))
	assert.False(t, TargetName("myName").Matches(self, ""))
	assert.True(t, TargetSurface(self).Matches(self, "other"))
	assert.False(t, TargetSurface(other).Matches(self, "myName"))
}

func TestTarget_JSON(t *testing.T) {
	id := NewSurfaceID()

	data, err := json.Marshal(TargetSurface(id))
	require.NoError(t, err)

	var back Target
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back.Surface())

	require.NoError(t, json.Unmarshal([]byte(`{"name":"myName"}`), &back))
	assert.Equal(t, "myName", back.Name())
	assert.True(t, back.Surface().IsZero())
}

func TestParseSurfaceID(t *testing.T) {
	id := NewSurfaceID()
	parsed, err := ParseSurfaceID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseSurfaceID("myName")
	assert.Error(t, err)
}
