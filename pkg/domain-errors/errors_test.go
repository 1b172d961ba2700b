package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "application not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeConflict, "duplicate")
		err := Wrap(inner, CodeInternal, "save failed")
		assert.True(t, HasCode(err, CodeConflict))
		assert.True(t, HasCode(err, CodeInternal))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeMissingReason, "reason required"))
		assert.True(t, HasCode(err, CodeMissingReason))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorsIsComparesCodes(t *testing.T) {
	err := New(CodeInvalidTransition, "cannot approve a draft")
	require.ErrorIs(t, err, New(CodeInvalidTransition, "any message"))
	assert.NotErrorIs(t, err, New(CodeNotFound, "cannot approve a draft"))
}

func TestWithMissing(t *testing.T) {
	err := WithMissing("application is incomplete", "id_card_back", "bankbook")
	assert.Equal(t, CodeIncompleteApplication, CodeOf(err))
	assert.Equal(t, []string{"id_card_back", "bankbook"}, Missing(err))
	assert.Equal(t, "application is incomplete", MessageOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}
