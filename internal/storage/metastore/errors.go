package metastore

import "fmt"

// NotFoundError indicates no namespace is registered under the name
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("namespace %s is not registered", e.Name)
}

// FormBoundError indicates the form already owns a different namespace
type FormBoundError struct {
	FormID    string
	Namespace string
}

func (e FormBoundError) Error() string {
	return fmt.Sprintf("form %s already owns namespace %s", e.FormID, e.Namespace)
}

// InvalidEntryError indicates an entry that cannot be stored
type InvalidEntryError struct {
	Field  string
	Reason string
}

func (e InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid namespace entry: %s %s", e.Field, e.Reason)
}
