package policy

import "github.com/facturo/facturo/internal/model"

// ResourceUser is the resource type of user records.
const ResourceUser = "user"

// UserTable is the decision table for user records.
var UserTable = Table{
	{RoleAdmin, RelationCollection, ActionIndex}:  true,
	{RoleAdmin, RelationCollection, ActionCreate}: true,
	{RoleAdmin, RelationSelf, ActionShow}:         true,
	{RoleAdmin, RelationSelf, ActionUpdate}:       true,
	{RoleAdmin, RelationOther, ActionShow}:        true,
	{RoleAdmin, RelationOther, ActionUpdate}:      true,
	{RoleAdmin, RelationOther, ActionDestroy}:     true,
	{RoleMember, RelationSelf, ActionShow}:        true,
	{RoleMember, RelationSelf, ActionUpdate}:      true,
}

type userResource struct {
	id string
}

func (u userResource) ResourceType() string { return ResourceUser }
func (u userResource) SubjectID() string    { return u.id }

// User wraps a user record as a policy resource.
func User(u *model.User) Resource {
	return userResource{id: u.ID}
}

// PermittedChanges strips the fields actor may not change on target.
//
// Only an admin may touch admin, active or password, and never on their
// own record: a self-demotion or self-deactivation is dropped rather than
// rejected. Self password changes go through the account endpoint, which
// re-verifies the current password.
func PermittedChanges(actor, target *model.User, changes model.UserChanges) model.UserChanges {
	if actor.Admin && actor.ID != target.ID {
		return changes
	}
	changes.Admin = nil
	changes.Active = nil
	changes.PasswordHash = nil
	return changes
}
