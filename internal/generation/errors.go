package generation

import "fmt"

// UpstreamUnavailableError indicates the text generation service failed or
// could not be reached
type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("generation service unavailable: %v", e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedOutputError indicates the generated text held no usable JSON object
type MalformedOutputError struct {
	Reason string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed generation output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed generation output: %s", e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}
