// Package policy decides whether an authenticated actor may perform an
// action on a resource. Each resource type registers a decision table keyed
// by the actor's role, the actor's relation to the target and the action.
// Anything not listed in a table is denied.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/facturo/facturo/internal/model"
)

// ErrForbidden is the uniform outcome of every denial.
var ErrForbidden = errors.New("forbidden")

// Action is a capability checked against a resource.
type Action string

const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy}

// Role is the actor's standing inside its tenant.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Relation describes how the target relates to the actor.
type Relation string

const (
	// RelationCollection applies to actions without a single target.
	RelationCollection Relation = "collection"
	RelationSelf       Relation = "self"
	RelationOther      Relation = "other"
)

// Rule is one row key of a decision table.
type Rule struct {
	Role     Role
	Relation Relation
	Action   Action
}

// Table maps rules to permit (true). Missing rules deny.
type Table map[Rule]bool

// Resource is anything a table can be looked up for.
// SubjectID identifies the single target, or is empty for a collection.
// For resources owned by a user, SubjectID is the owning user's id.
type Resource interface {
	ResourceType() string
	SubjectID() string
}

type collection string

func (c collection) ResourceType() string { return string(c) }
func (c collection) SubjectID() string    { return "" }

// Collection returns the resource for index and create on resourceType.
func Collection(resourceType string) Resource {
	return collection(resourceType)
}

// RoleOf returns the actor's role.
func RoleOf(actor *model.User) Role {
	if actor.Admin {
		return RoleAdmin
	}
	return RoleMember
}

// RelationOf returns how res relates to actor.
func RelationOf(actor *model.User, res Resource) Relation {
	switch res.SubjectID() {
	case "":
		return RelationCollection
	case actor.ID:
		return RelationSelf
	default:
		return RelationOther
	}
}

// Registry holds decision tables per resource type. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Table)}
}

// New returns a Registry with every built-in resource type registered.
func New() *Registry {
	r := NewRegistry()
	r.Register(ResourceUser, UserTable)
	return r
}

// Register installs table for resourceType, replacing any previous one.
func (r *Registry) Register(resourceType string, table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[resourceType] = table
}

// Decide reports whether the rule is permitted for resourceType.
func (r *Registry) Decide(resourceType string, rule Rule) bool {
	r.mu.RLock()
	table, ok := r.tables[resourceType]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return table[rule]
}

// Authorize returns nil when actor may perform action on res, and an error
// wrapping ErrForbidden otherwise. Tenant scoping has already happened by
// the time this runs, so res is known to be visible to the actor.
func (r *Registry) Authorize(actor *model.User, action Action, res Resource) error {
	if actor == nil {
		return ErrForbidden
	}
	rule := Rule{Role: RoleOf(actor), Relation: RelationOf(actor, res), Action: action}
	if !r.Decide(res.ResourceType(), rule) {
		return fmt.Errorf("%w: %s %s on %s", ErrForbidden, rule.Role, action, res.ResourceType())
	}
	return nil
}
