package models

import (
	"strings"

	"github.com/gookit/validate"
)

const (
	ReasonMissingFields  = "Please fill in both name and message"
	ReasonNameTooLong    = "Name must be at most 50 characters"
	ReasonMessageTooLong = "Message must be at most 500 characters"
	ReasonAlreadyPosted  = "You have already posted a message"
	ReasonWriteFailed    = "Failed to post message. Please try again."
	ReasonFeedFailed     = "Failed to load posts"
)

// Draft is the form input of a post before it is written.
type Draft struct {
	Name    string `json:"name" validate:"required|maxLen:50"`
	Message string `json:"message" validate:"required|maxLen:500"`
}

// NewDraft trims surrounding whitespace from both fields.
func NewDraft(name, message string) Draft {
	return Draft{
		Name:    strings.TrimSpace(name),
		Message: strings.TrimSpace(message),
	}
}

// draftChecks is the order in which failed rules are reported. Errors are
// keyed by the json name of the field.
var draftChecks = []struct {
	field     string
	validator string
}{
	{"name", "required"},
	{"message", "required"},
	{"name", "maxLen"},
	{"message", "maxLen"},
}

func (d Draft) Messages() map[string]string {
	return validate.MS{
		"required":       ReasonMissingFields,
		"Name.maxLen":    ReasonNameTooLong,
		"Message.maxLen": ReasonMessageTooLong,
	}
}

func (d Draft) Validate() error {
	v := validate.Struct(&d)
	v.StopOnError = false
	if v.Validate() {
		return nil
	}
	for _, c := range draftChecks {
		if msg, ok := v.Errors.Field(c.field)[c.validator]; ok {
			return &ValidationError{Field: c.field, Reason: msg}
		}
	}
	return &ValidationError{Field: "draft", Reason: v.Errors.One()}
}
