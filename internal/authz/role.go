// Copyright 2026 The Docuflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// Built-in role ids. Global constants, never persisted.
const (
	RoleIDAdmin       = "rol-builtin-admin"
	RoleIDEditor      = "rol-builtin-editor"
	RoleIDReviewer    = "rol-builtin-reviewer"
	RoleIDContributor = "rol-builtin-contributor"
	RoleIDReader      = "rol-builtin-reader"
)

// Role is a named bundle of permissions assigned to an ACL at creation time.
// Roles are value objects: permission add/remove return new values.
type Role struct {
	RoleID      string       `json:"roleId"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	AccountID   string       `json:"accountId,omitempty"`
	IsBuiltin   bool         `json:"isBuiltin"`
	IsDefault   bool         `json:"isDefault"`
	Description string       `json:"description,omitempty"`
}

// NewRoleID generates a fresh role identifier.
func NewRoleID() string {
	return "rol-" + uuid.NewString()
}

// PluralName is the display name for an ACL materialized from this role,
// e.g. "Admins" for the Admin role.
func (r Role) PluralName() string {
	return r.Name + "s"
}

// HeadPermission is the role's leading permission, whose inherited set seeds
// the rules of ACLs created from the role.
func (r Role) HeadPermission() Permission {
	if len(r.Permissions) == 0 {
		return PermissionView
	}
	return r.Permissions[0]
}

// AddPermission returns a copy of the role carrying the extra permissions.
func (r Role) AddPermission(perms []Permission) Role {
	next := r
	next.Permissions = make([]Permission, len(r.Permissions))
	copy(next.Permissions, r.Permissions)
	for _, p := range perms {
		exists := false
		for _, have := range next.Permissions {
			if have == p {
				exists = true
				break
			}
		}
		if !exists {
			next.Permissions = append(next.Permissions, p)
		}
	}
	return next
}

// RemovePermission returns a copy of the role without the given permissions.
func (r Role) RemovePermission(perms []Permission) Role {
	drop := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		drop[p] = true
	}
	next := r
	next.Permissions = make([]Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		if !drop[p] {
			next.Permissions = append(next.Permissions, p)
		}
	}
	return next
}

// BuiltinRoles is the process-wide registry of global roles. It is constructed
// once at initialization and injected; callers must not mutate it.
type BuiltinRoles struct {
	Admin       Role
	Editor      Role
	Reviewer    Role
	Contributor Role
	Reader      Role
}

// NewBuiltinRoles constructs the global role registry.
func NewBuiltinRoles() BuiltinRoles {
	return BuiltinRoles{
		Admin: Role{
			RoleID:      RoleIDAdmin,
			Name:        "Admin",
			Permissions: []Permission{PermissionAdmin, PermissionEdit, PermissionView, PermissionPublish, PermissionReview},
			IsBuiltin:   true,
		},
		Editor: Role{
			RoleID:      RoleIDEditor,
			Name:        "Editor",
			Permissions: []Permission{PermissionPublish, PermissionEdit, PermissionView, PermissionReview},
			IsBuiltin:   true,
		},
		Reviewer: Role{
			RoleID:      RoleIDReviewer,
			Name:        "Reviewer",
			Permissions: []Permission{PermissionReview, PermissionEdit, PermissionView},
			IsBuiltin:   true,
		},
		Contributor: Role{
			RoleID:      RoleIDContributor,
			Name:        "Contributor",
			Permissions: []Permission{PermissionEdit, PermissionView},
			IsBuiltin:   true,
		},
		Reader: Role{
			RoleID:      RoleIDReader,
			Name:        "Reader",
			Permissions: []Permission{PermissionView},
			IsBuiltin:   true,
			IsDefault:   true,
		},
	}
}

// All returns the registry as a slice, in rank order.
func (b BuiltinRoles) All() []Role {
	return []Role{b.Admin, b.Editor, b.Reviewer, b.Contributor, b.Reader}
}

// ByID resolves a built-in role by id.
func (b BuiltinRoles) ByID(roleID string) (Role, bool) {
	for _, r := range b.All() {
		if r.RoleID == roleID {
			return r, true
		}
	}
	return Role{}, false
}

// DocumentRuleForRole builds the rule an ACL created from the role carries for
// the given document. The permission set is expanded through the lattice here,
// at write time, so read paths can trust the stored set.
func DocumentRuleForRole(documentID string, role Role) Rule {
	return Rule{
		Resource:    ResourceGroup{Type: ResourceDocument, IDs: []string{documentID}},
		Permissions: role.HeadPermission().Inherited(),
	}
}

// NewDocumentACL builds an unpersisted ACL granting the role on a document.
func NewDocumentACL(accountID, documentID string, role Role, restrictions *RestrictionSet) ACL {
	name := fmt.Sprintf("%s on %s", role.Name, documentID)
	return ACL{
		ID:             NewAclID(),
		Name:           name,
		Description:    name,
		AccountID:      accountID,
		Assignees:      []AssigneeGroup{},
		Rules:          []Rule{DocumentRuleForRole(documentID, role)},
		RoleID:         role.RoleID,
		RestrictionSet: restrictions,
	}
}

// DefaultAccountACLs materializes the ACLs a fresh account starts with: one
// document-level ACL per built-in role on the account's root collection, plus
// an account-level EDIT ACL for the admins. Plural role names become ACL
// names; the "Admins" name is load-bearing for the last-admin guard.
func DefaultAccountACLs(accountID, rootCollectionID string, roles BuiltinRoles) []ACL {
	var acls []ACL
	for _, role := range roles.All() {
		acls = append(acls, ACL{
			ID:          NewAclID(),
			Name:        role.PluralName(),
			Description: fmt.Sprintf("%s of account %s", role.PluralName(), accountID),
			AccountID:   accountID,
			Assignees:   []AssigneeGroup{},
			Rules:       []Rule{DocumentRuleForRole(rootCollectionID, role)},
			RoleID:      role.RoleID,
		})
	}
	acls = append(acls, ACL{
		ID:          NewAclID(),
		Name:        roles.Admin.PluralName(),
		Description: fmt.Sprintf("Account administration of %s", accountID),
		AccountID:   accountID,
		Assignees:   []AssigneeGroup{},
		Rules: []Rule{{
			Resource:    ResourceGroup{Type: ResourceAccount, IDs: []string{accountID}},
			Permissions: PermissionEdit.Inherited(),
		}},
		RoleID: roles.Admin.RoleID,
	})
	return acls
}
