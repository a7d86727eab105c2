package forms

import "fmt"

// NotFoundError indicates a form was not found
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("form not found: %s", e.ID)
}

// AlreadyPublishedError indicates a publish of an already published form
type AlreadyPublishedError struct {
	ID string
}

func (e *AlreadyPublishedError) Error() string {
	return fmt.Sprintf("form %s is already published", e.ID)
}

// InvalidTransitionError indicates a status change the lifecycle forbids
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("form %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// ConflictError indicates the form changed underneath a versioned write
type ConflictError struct {
	ID              string
	ExpectedVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("form %s was modified concurrently (expected version %d)", e.ID, e.ExpectedVersion)
}

// InvalidInputError indicates a rejected create or update payload
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
