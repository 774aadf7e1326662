package services

import "errors"

var (
	// ErrConversationIDRequired is returned when a caller passes an empty
	// conversation id.
	ErrConversationIDRequired = errors.New("conversation id is required")

	// ErrMessageRequired is returned when a chat turn carries no user text.
	ErrMessageRequired = errors.New("message is required")

	// ErrCompletionFailure wraps any model-provider failure. Nothing is
	// persisted when it occurs.
	ErrCompletionFailure = errors.New("completion request failed")

	// ErrMalformedExtraction is returned when the model output cannot be
	// parsed as the lead schema.
	ErrMalformedExtraction = errors.New("extraction output is not valid JSON")

	// ErrValidationFailure is returned when a parsed extraction is missing
	// required fields or carries an unknown lead quality.
	ErrValidationFailure = errors.New("extraction output failed validation")
)
