package entities

import "fmt"

// Roles known to the capability policy defaults.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// Capabilities checked by the endpoints.
const (
	CapabilityEditPosts     = "edit_posts"
	CapabilityManageOptions = "manage_options"
)

// Subject is the authenticated caller of an endpoint.
type Subject struct {
	Login string
	Role  string
}

// String returns login(role).
func (s *Subject) String() string {
	return fmt.Sprintf("%s(%s)", s.Login, s.Role)
}

// AsMap exposes the subject to capability rules.
func (s *Subject) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"login": s.Login,
		"role":  s.Role,
	}
}
