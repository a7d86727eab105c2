package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxIDLength bounds form and submission identifiers taken from paths
const MaxIDLength = 128

// ValidateNonEmpty rejects a blank body field
func ValidateNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return bodyError(field, "cannot be empty")
	}
	return nil
}

// ValidateID checks an identifier taken from a request path
func ValidateID(field, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return pathError(field, "cannot be empty")
	case utf8.RuneCountInString(value) > MaxIDLength:
		return pathError(field, fmt.Sprintf("exceeds %d characters", MaxIDLength))
	case strings.ContainsAny(value, "/\\ \t\n"):
		return pathError(field, "contains invalid characters")
	}
	return nil
}
