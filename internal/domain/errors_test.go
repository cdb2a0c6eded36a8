package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorTransient(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{404, true},
		{503, true},
		{400, false},
		{401, false},
		{429, false},
		{500, false},
		{502, false},
	}

	for _, tt := range tests {
		err := &HTTPError{Status: tt.status, URL: "https://example.org"}
		assert.Equal(t, tt.transient, err.Transient(), "status %d", tt.status)
	}
}

func TestUserMessage(t *testing.T) {
	t.Run("known failures get specific hints", func(t *testing.T) {
		hints := map[error]bool{
			ErrPermissionDenied:    true,
			ErrPositionUnavailable: true,
			ErrLocationNotFound:    true,
			ErrTimeout:             true,
		}

		seen := make(map[string]bool)
		for err := range hints {
			hint := UserMessage(err)
			assert.NotEmpty(t, hint)
			assert.False(t, seen[hint], "hint for %v must be distinct", err)
			seen[hint] = true
		}
	})

	t.Run("wrapped errors still match", func(t *testing.T) {
		wrapped := fmt.Errorf("forward geocode: %w", ErrLocationNotFound)
		assert.Equal(t, UserMessage(ErrLocationNotFound), UserMessage(wrapped))
	})

	t.Run("unknown errors get the generic hint", func(t *testing.T) {
		assert.NotEmpty(t, UserMessage(errors.New("boom")))
	})
}

func TestConditionLabel(t *testing.T) {
	assert.Equal(t, "Schnee", ConditionLabel(ConditionSnow))
	assert.Equal(t, "Gewitter", ConditionLabel(ConditionThunderstorm))
	assert.Equal(t, "82", ConditionLabel("82"))
	assert.Equal(t, "", ConditionLabel(""))
}
