package auth

import "fmt"

// UnauthorizedError rejects a request that carries no usable identity
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

// DenyReason says why an identified caller was refused
type DenyReason string

const (
	DenyOrganization   DenyReason = "form belongs to another organization"
	DenyGroup          DenyReason = "caller is not in an allowed group"
	DenyNoOrganization DenyReason = "caller acts for no organization"
	DenyUnknownAction  DenyReason = "unknown action"
)

// ForbiddenError refuses an action on a form to an identified caller.
// An empty FormID means the action was not bound to a stored form.
type ForbiddenError struct {
	UserID string
	FormID string
	Action Action
	Reason DenyReason
}

func (e ForbiddenError) Error() string {
	target := "forms"
	if e.FormID != "" {
		target = "form " + e.FormID
	}
	msg := fmt.Sprintf("forbidden: %s on %s", e.Action, target)
	if e.UserID != "" {
		msg = fmt.Sprintf("forbidden: user %s may not %s %s", e.UserID, e.Action, target)
	}
	if e.Reason != "" {
		msg += ": " + string(e.Reason)
	}
	return msg
}
