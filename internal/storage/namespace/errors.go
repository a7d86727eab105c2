package namespace

import "fmt"

// NotProvisionedError indicates a form has no namespace yet
type NotProvisionedError struct {
	FormID string
}

func (e *NotProvisionedError) Error() string {
	return fmt.Sprintf("namespace for form %s is not provisioned", e.FormID)
}

// RecordNotFoundError indicates a record was not found in a namespace
type RecordNotFoundError struct {
	Namespace string
	RecordID  string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %s not found in namespace %s", e.RecordID, e.Namespace)
}

// InvalidRecordError indicates a record does not fit the record envelope
type InvalidRecordError struct {
	Path   string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid record at %s: %s", e.Path, e.Reason)
}

// InvalidStatusError indicates a status outside the accepted set
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Status)
}

// InvalidFilterError indicates a listing filter that does not parse
type InvalidFilterError struct {
	Expression string
	Err        error
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %v", e.Expression, e.Err)
}

func (e *InvalidFilterError) Unwrap() error {
	return e.Err
}
