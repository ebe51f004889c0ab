package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when the provider credential pair is
	// not configured. Not user-retryable until the environment is fixed.
	ErrMissingCredentials = errors.New("provider credentials are not configured")

	// ErrSessionNotFound is returned for operations on an unknown or
	// already-abandoned session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoRetryInputs is returned when a section retry is requested before
	// the session has recorded the inputs that section was dispatched with.
	ErrNoRetryInputs = errors.New("no recorded inputs to retry with")
)

// ValidationError reports a bad caller input. It maps to a 400 response and
// is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// normalizedMessage reduces an internal error to the message shown against a
// section in the UI. Raw provider error text stays in logs only.
var sectionMessages = map[Section]string{
	SectionUpload:     "Video upload failed. Check the file and try again.",
	SectionFrames:     "Frame extraction failed. Retry to attempt extraction again.",
	SectionTranscript: "Transcription failed. Retry to attempt transcription again.",
	SectionAnalysis:   "Analysis failed. Retry to run the analysis again.",
}

func normalizedMessage(section Section) string {
	if msg, ok := sectionMessages[section]; ok {
		return msg
	}
	return "Processing failed."
}
