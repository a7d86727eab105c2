package submissions

import (
	"fmt"

	"github.com/formai/engine/internal/forms"
)

// ValidationFailedError reports the first field that rejected a submission.
// Reason is the message shown to the submitter and names the field label.
type ValidationFailedError struct {
	Field  string
	Label  string
	Reason string
}

func (e *ValidationFailedError) Error() string {
	return e.Reason
}

// SubmissionsClosedError indicates a form that does not accept submissions
type SubmissionsClosedError struct {
	FormID string
	Status forms.Status
}

func (e *SubmissionsClosedError) Error() string {
	return fmt.Sprintf("form %s does not accept submissions (status %s)", e.FormID, e.Status)
}
