package auth

// Authorizer defines the interface for authorization
type Authorizer interface {
	// Authorize checks if the identity may perform action on the resource
	Authorize(id *Identity, res Resource, action Action) error
}

// GroupAuthorizer scopes access by organization and form access groups.
// An empty group list grants the action to the whole organization; managers
// may always view.
type GroupAuthorizer struct {
}

// NewGroupAuthorizer creates a new group authorizer
func NewGroupAuthorizer() *GroupAuthorizer {
	return &GroupAuthorizer{}
}

// Authorize checks if the identity is authorized for the given action
func (a *GroupAuthorizer) Authorize(id *Identity, res Resource, action Action) error {
	// public forms take anonymous submissions
	if action == ActionSubmit && res.IsPublic {
		return nil
	}

	if id == nil {
		return UnauthorizedError{Reason: "no identity"}
	}

	if id.Organization != res.Organization {
		return ForbiddenError{UserID: id.UserID, FormID: res.ID, Action: action, Reason: DenyOrganization}
	}

	var groups []string
	switch action {
	case ActionView:
		if len(res.ViewGroups) == 0 || id.InGroup(res.ViewGroups) || id.InGroup(res.ManageGroups) {
			return nil
		}
		groups = res.ViewGroups
	case ActionSubmit:
		groups = res.SubmitGroups
	case ActionManage:
		groups = res.ManageGroups
	default:
		return ForbiddenError{UserID: id.UserID, FormID: res.ID, Action: action, Reason: DenyUnknownAction}
	}

	if len(groups) == 0 || id.InGroup(groups) {
		return nil
	}
	return ForbiddenError{UserID: id.UserID, FormID: res.ID, Action: action, Reason: DenyGroup}
}

// RequireOrganization checks that the identity acts for an organization,
// for operations that are not bound to an existing form
func RequireOrganization(id *Identity) error {
	if id == nil {
		return UnauthorizedError{Reason: "no identity"}
	}
	if id.Organization == "" {
		return ForbiddenError{UserID: id.UserID, Action: ActionManage, Reason: DenyNoOrganization}
	}
	return nil
}
