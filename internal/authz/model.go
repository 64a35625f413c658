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
	"time"

	"github.com/google/uuid"
)

// AssigneeType categorizes the identity an ACL grants access to. The integer
// values are persisted and must remain stable.
type AssigneeType int

const (
	AssigneeUser      AssigneeType = 0
	AssigneeAccount   AssigneeType = 1
	AssigneePublic    AssigneeType = 2
	AssigneeUserGroup AssigneeType = 3
)

func (t AssigneeType) String() string {
	switch t {
	case AssigneeUser:
		return "USER"
	case AssigneeAccount:
		return "ACCOUNT"
	case AssigneePublic:
		return "PUBLIC"
	case AssigneeUserGroup:
		return "USERGROUP"
	}
	return "UNKNOWN"
}

// ResourceType categorizes a protected resource. DOCUMENT covers both leaf
// documents and collections; the hierarchy between them is external.
type ResourceType int

const (
	ResourceDocument ResourceType = 1
	ResourceAccount  ResourceType = 2
)

func (t ResourceType) String() string {
	switch t {
	case ResourceDocument:
		return "DOCUMENT"
	case ResourceAccount:
		return "ACCOUNT"
	}
	return "UNKNOWN"
}

// ContainingResourceTypes returns the resource types whose ACLs can grant
// access to a resource of the given type through containment.
func ContainingResourceTypes(t ResourceType) []ResourceType {
	return []ResourceType{t}
}

// AssigneeGroup is a set of identities of one type. A PUBLIC group always has
// an empty id set and matches anyone.
type AssigneeGroup struct {
	Type AssigneeType `json:"type"`
	IDs  []string     `json:"ids"`
}

// PublicAssignee returns the assignee group representing "anyone".
func PublicAssignee() AssigneeGroup {
	return AssigneeGroup{Type: AssigneePublic, IDs: []string{}}
}

// ResourceGroup is a set of resource ids of one type. When produced by the
// hierarchy resolver, ID holds the resource the group was expanded from and
// IDs its full ancestor chain.
type ResourceGroup struct {
	Type ResourceType `json:"type"`
	IDs  []string     `json:"ids"`
	ID   string       `json:"id,omitempty"`
}

// ResourceGroupWithKey is a ResourceGroup tagged with the reduction key it was
// merged under, so groups with different restriction sets stay separate.
type ResourceGroupWithKey struct {
	ResourceGroup
	Key string `json:"resourceGroupKey"`
}

// RestrictionSet optionally narrows when an ACL applies.
type RestrictionSet struct {
	LanguageCodes []string `json:"languageCodes,omitempty"`
}

// Rule grants a set of permissions on a resource group. Rule permission sets
// are stored inheritance-complete: creating a rule from a role expands the
// role's head permission through the lattice up front.
type Rule struct {
	Resource    ResourceGroup `json:"resource"`
	Permissions []Permission  `json:"permissions"`
}

// HasPermission reports whether the rule carries the exact permission name.
func (r Rule) HasPermission(p Permission) bool {
	for _, have := range r.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// MaxPermission returns the highest-scoring permission on the rule.
func (r Rule) MaxPermission() Permission {
	max := Permission(-1)
	score := -1
	for _, p := range r.Permissions {
		if s := p.Score(); s > score {
			max, score = p, s
		}
	}
	return max
}

// ACL binds assignee groups to resource-scoped permission rules. ACLs are
// value objects: every mutator returns a new ACL and the store persists the
// replacement under the same id.
type ACL struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	AccountID      string          `json:"accountId"`
	Assignees      []AssigneeGroup `json:"assignees"`
	Rules          []Rule          `json:"rules"`
	RoleID         string          `json:"roleId"`
	RestrictionSet *RestrictionSet `json:"restrictionSet,omitempty"`
	CreatedOn      time.Time       `json:"createdOn,omitempty"`
	UpdatedOn      time.Time       `json:"updatedOn,omitempty"`
}

// NewAclID generates a fresh ACL identifier.
func NewAclID() string {
	return "acl-" + uuid.NewString()
}

func cloneAssignees(in []AssigneeGroup) []AssigneeGroup {
	out := make([]AssigneeGroup, len(in))
	for i, g := range in {
		ids := make([]string, len(g.IDs))
		copy(ids, g.IDs)
		out[i] = AssigneeGroup{Type: g.Type, IDs: ids}
	}
	return out
}

// AddAssignee returns a copy of the ACL with the id added to the assignee
// group of the given type, creating the group if absent. Adding an id that is
// already present is a no-op copy.
func (a ACL) AddAssignee(t AssigneeType, id string) ACL {
	next := a
	next.Assignees = cloneAssignees(a.Assignees)
	for i := range next.Assignees {
		if next.Assignees[i].Type != t {
			continue
		}
		for _, existing := range next.Assignees[i].IDs {
			if existing == id {
				return next
			}
		}
		next.Assignees[i].IDs = append(next.Assignees[i].IDs, id)
		return next
	}
	next.Assignees = append(next.Assignees, AssigneeGroup{Type: t, IDs: []string{id}})
	return next
}

// RemoveAssignee returns a copy of the ACL with the id removed from the
// assignee group of the given type. Groups left empty are dropped, except the
// PUBLIC group which is defined by its type alone.
func (a ACL) RemoveAssignee(t AssigneeType, id string) ACL {
	next := a
	next.Assignees = make([]AssigneeGroup, 0, len(a.Assignees))
	for _, g := range cloneAssignees(a.Assignees) {
		if g.Type == t {
			kept := g.IDs[:0]
			for _, existing := range g.IDs {
				if existing != id {
					kept = append(kept, existing)
				}
			}
			g.IDs = kept
			if len(g.IDs) == 0 && g.Type != AssigneePublic {
				continue
			}
		}
		next.Assignees = append(next.Assignees, g)
	}
	return next
}

// AddPublicAssignee returns a copy of the ACL carrying the PUBLIC assignee.
func (a ACL) AddPublicAssignee() ACL {
	if a.HasPublicAssignee() {
		next := a
		next.Assignees = cloneAssignees(a.Assignees)
		return next
	}
	next := a
	next.Assignees = append(cloneAssignees(a.Assignees), PublicAssignee())
	return next
}

// RemovePublicAssignee returns a copy of the ACL without the PUBLIC assignee.
func (a ACL) RemovePublicAssignee() ACL {
	next := a
	next.Assignees = make([]AssigneeGroup, 0, len(a.Assignees))
	for _, g := range cloneAssignees(a.Assignees) {
		if g.Type == AssigneePublic {
			continue
		}
		next.Assignees = append(next.Assignees, g)
	}
	return next
}

// WithRules returns a copy of the ACL carrying the given rules.
func (a ACL) WithRules(rules []Rule) ACL {
	next := a
	next.Assignees = cloneAssignees(a.Assignees)
	next.Rules = rules
	return next
}

// WithRoleID returns a copy of the ACL referencing the given role.
func (a ACL) WithRoleID(roleID string) ACL {
	next := a
	next.Assignees = cloneAssignees(a.Assignees)
	next.RoleID = roleID
	return next
}

// HasPublicAssignee reports whether the ACL grants to everyone.
func (a ACL) HasPublicAssignee() bool {
	for _, g := range a.Assignees {
		if g.Type == AssigneePublic {
			return true
		}
	}
	return false
}

// UserAssignees returns the user ids directly on the ACL.
func (a ACL) UserAssignees() []string {
	return a.assigneeIDs(AssigneeUser)
}

// UserGroupAssignees returns the group ids directly on the ACL.
func (a ACL) UserGroupAssignees() []string {
	return a.assigneeIDs(AssigneeUserGroup)
}

func (a ACL) assigneeIDs(t AssigneeType) []string {
	var ids []string
	for _, g := range a.Assignees {
		if g.Type == t {
			ids = append(ids, g.IDs...)
		}
	}
	return ids
}

// HasAssignee reports whether the id appears in an assignee group of the
// given type.
func (a ACL) HasAssignee(t AssigneeType, id string) bool {
	for _, g := range a.Assignees {
		if g.Type != t {
			continue
		}
		for _, existing := range g.IDs {
			if existing == id {
				return true
			}
		}
	}
	return false
}

// GrantsPermission reports whether any rule carries the exact permission.
func (a ACL) GrantsPermission(p Permission) bool {
	for _, rule := range a.Rules {
		if rule.HasPermission(p) {
			return true
		}
	}
	return false
}

// GrantsEditOrAdmin reports whether the ACL affects the coarse permission
// cache: only EDIT and ADMIN grants are cached.
func (a ACL) GrantsEditOrAdmin() bool {
	return a.GrantsPermission(PermissionEdit) || a.GrantsPermission(PermissionAdmin)
}

// MaxPermission returns the highest-scoring permission across all rules.
func (a ACL) MaxPermission() Permission {
	max := Permission(-1)
	score := -1
	for _, rule := range a.Rules {
		if p := rule.MaxPermission(); p.Score() > score {
			max, score = p, p.Score()
		}
	}
	return max
}

// ResourceIDs returns every resource id mentioned by the ACL's rules.
func (a ACL) ResourceIDs() []string {
	var ids []string
	for _, rule := range a.Rules {
		ids = append(ids, rule.Resource.IDs...)
	}
	return ids
}

// ReducePermissions flattens the rules of the given ACLs to the deduplicated
// set of permission names they carry, in stable first-seen order.
func ReducePermissions(acls []ACL) []Permission {
	seen := make(map[Permission]bool)
	var out []Permission
	for _, acl := range acls {
		for _, rule := range acl.Rules {
			for _, p := range rule.Permissions {
				if !seen[p] {
					seen[p] = true
					out = append(out, p)
				}
			}
		}
	}
	return out
}
