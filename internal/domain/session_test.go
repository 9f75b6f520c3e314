package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectIDShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id := NewObjectID()
		require.True(t, IsValidID(id), "generated id %q must be 24-hex", id)
		_, dup := seen[id]
		require.False(t, dup, "ids must not repeat")
		seen[id] = struct{}{}
	}
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("507f1f77bcf86cd799439011"))
	assert.True(t, IsValidID("ABCDEF0123456789abcdef01"))

	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("507f1f77bcf86cd79943901"))   // 23 chars
	assert.False(t, IsValidID("507f1f77bcf86cd7994390111")) // 25 chars
	assert.False(t, IsValidID("507f1f77bcf86cd79943901z"))  // non-hex
}

func TestValidateSessionName(t *testing.T) {
	got, err := ValidateSessionName("  Calc Study  ")
	require.NoError(t, err)
	assert.Equal(t, "Calc Study", got)

	for _, bad := range []string{"", "ab", "  ab  ", strings.Repeat("x", 51)} {
		_, err := ValidateSessionName(bad)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "name %q must fail", bad)
	}
}

func TestSessionPatchEmpty(t *testing.T) {
	assert.True(t, SessionPatch{}.Empty())

	title := "t"
	assert.False(t, SessionPatch{Title: &title}.Empty())
	desc := ""
	assert.False(t, SessionPatch{Description: &desc}.Empty(), "explicit empty string still counts as a provided field")
}
