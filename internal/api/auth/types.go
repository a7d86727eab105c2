package auth

// Action is an operation a caller performs on a form
type Action string

const (
	// ActionView reads a form, its submissions and exports
	ActionView Action = "view"
	// ActionSubmit sends a submission
	ActionSubmit Action = "submit"
	// ActionManage edits, publishes, archives or deletes a form
	ActionManage Action = "manage"
)

// Identity is the authenticated caller, established upstream
type Identity struct {
	// UserID identifies the caller
	UserID string
	// Organization is the tenant the caller acts for
	Organization string
	// Groups are the access groups the caller belongs to
	Groups []string
}

// InGroup reports whether the identity belongs to any of groups
func (i *Identity) InGroup(groups []string) bool {
	for _, g := range groups {
		for _, mine := range i.Groups {
			if g == mine {
				return true
			}
		}
	}
	return false
}

// Resource is the access-relevant view of a form
type Resource struct {
	ID           string
	Organization string
	IsPublic     bool
	ViewGroups   []string
	SubmitGroups []string
	ManageGroups []string
}
