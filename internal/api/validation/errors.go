package validation

import "fmt"

// Location is the part of a request an input came from
type Location string

const (
	InBody  Location = "body"
	InQuery Location = "query parameter"
	InPath  Location = "path parameter"
)

// RequestError rejects request input before it reaches a service. An
// empty Field means the body as a whole could not be read.
type RequestError struct {
	In     Location
	Field  string
	Reason string
}

func (e RequestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request %s: %s", e.In, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.In, e.Field, e.Reason)
}

// Target names what to point the client at: the field, or the location
// when the whole input was rejected
func (e RequestError) Target() string {
	if e.Field == "" {
		return string(e.In)
	}
	return e.Field
}

func bodyError(field, reason string) RequestError {
	return RequestError{In: InBody, Field: field, Reason: reason}
}

func queryError(name, reason string) RequestError {
	return RequestError{In: InQuery, Field: name, Reason: reason}
}

func pathError(name, reason string) RequestError {
	return RequestError{In: InPath, Field: name, Reason: reason}
}

// MalformedBody reports a body that could not be decoded at all
func MalformedBody(err error) RequestError {
	return bodyError("", err.Error())
}
