package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDraft_TrimsWhitespace(t *testing.T) {
	d := NewDraft("  Ana \n", "\tHello wall  ")
	assert.Equal(t, "Ana", d.Name)
	assert.Equal(t, "Hello wall", d.Message)
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		field   string
		reason  string
		wantErr bool
	}{
		{"valid", NewDraft("Ana", "Hello wall"), "", "", false},
		{"empty name", NewDraft("", "Hello"), "name", ReasonMissingFields, true},
		{"whitespace name", NewDraft("   ", "Hello"), "name", ReasonMissingFields, true},
		{"empty message", NewDraft("Ana", ""), "message", ReasonMissingFields, true},
		{"both empty", NewDraft(" ", " "), "name", ReasonMissingFields, true},
		{"name at limit", NewDraft(strings.Repeat("a", MaxNameLength), "hi"), "", "", false},
		{"name over limit", NewDraft(strings.Repeat("a", MaxNameLength+1), "hi"), "name", ReasonNameTooLong, true},
		{"message at limit", NewDraft("Ana", strings.Repeat("m", MaxMessageLength)), "", "", false},
		{"message over limit", NewDraft("Ana", strings.Repeat("m", MaxMessageLength+1)), "message", ReasonMessageTooLong, true},
		{"multibyte name at limit", NewDraft(strings.Repeat("é", MaxNameLength), "hi"), "", "", false},
		{"long name and empty message", NewDraft(strings.Repeat("a", MaxNameLength+1), ""), "message", ReasonMissingFields, true},
		{"both over limit", NewDraft(strings.Repeat("a", MaxNameLength+1), strings.Repeat("m", MaxMessageLength+1)), "name", ReasonNameTooLong, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.Equal(t, tt.reason, err.Error())
		})
	}
}

func TestValidationError_IsOnlyValidation(t *testing.T) {
	err := &ValidationError{Field: "name", Reason: ReasonMissingFields}
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrDuplicatePost)
	assert.NotErrorIs(t, err, ErrWrite)
}
