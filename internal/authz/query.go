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
	"sort"
	"strings"
)

// Query is a structured predicate over persisted ACLs. Stores translate it to
// their native query language; it is never expressed as a serialized string,
// which keeps caller input out of the underlying query syntax.
//
// Empty fields match everything. Non-empty fields are combined with AND; the
// elements within a field are alternatives (OR).
type Query struct {
	// Assignees matches ACLs with at least one assignee group of the same
	// type and an overlapping id. A PUBLIC group matches any PUBLIC assignee
	// regardless of ids.
	Assignees []AssigneeGroup

	// Resources matches ACLs with at least one rule whose resource type
	// matches and whose ids overlap.
	Resources []ResourceGroup

	// ResourceTypes matches ACLs with at least one rule of the given type.
	// When Permission is set too, the same rule must carry the permission.
	ResourceTypes []ResourceType

	// Permissions matches ACLs with at least one rule carrying one of the
	// exact permission names.
	Permissions []Permission

	// Permission pairs with ResourceTypes (rule-level conjunction).
	Permission *Permission

	// AccountIDs restricts to the given accounts.
	AccountIDs []string

	// RoleID restricts to ACLs created from the role.
	RoleID string

	// Restrictions, when set, requires an exactly matching restriction set.
	Restrictions *RestrictionSet

	// AssigneeID matches ACLs mentioning the id in any assignee group,
	// regardless of group type.
	AssigneeIDs []string
}

// MatchQuery builds the predicate behind findMatches: assignee overlap AND
// resource overlap AND (optionally) permission presence AND account scope.
func MatchQuery(assignees []AssigneeGroup, resources []ResourceGroup, permissions []Permission, accountID string) Query {
	q := Query{
		Assignees:   assignees,
		Resources:   resources,
		Permissions: permissions,
	}
	if accountID != "" {
		q.AccountIDs = []string{accountID}
	}
	return q
}

// Matches evaluates the predicate against a single ACL. This is the reference
// semantics for every store implementation.
func (q Query) Matches(acl ACL) bool {
	if len(q.AccountIDs) > 0 && !containsString(q.AccountIDs, acl.AccountID) {
		return false
	}
	if q.RoleID != "" && acl.RoleID != q.RoleID {
		return false
	}
	if q.Restrictions != nil && !restrictionsEqual(acl.RestrictionSet, q.Restrictions) {
		return false
	}
	if len(q.Assignees) > 0 && !matchesAssignees(acl, q.Assignees) {
		return false
	}
	if len(q.AssigneeIDs) > 0 && !matchesAssigneeIDs(acl, q.AssigneeIDs) {
		return false
	}
	if len(q.Resources) > 0 && !matchesResources(acl, q.Resources) {
		return false
	}
	if len(q.ResourceTypes) > 0 && !matchesResourceTypes(acl, q.ResourceTypes, q.Permission) {
		return false
	}
	if len(q.Permissions) > 0 && !matchesPermissions(acl, q.Permissions) {
		return false
	}
	return true
}

func matchesAssignees(acl ACL, wanted []AssigneeGroup) bool {
	for _, want := range wanted {
		for _, have := range acl.Assignees {
			if have.Type != want.Type {
				continue
			}
			if want.Type == AssigneePublic {
				return true
			}
			if overlaps(have.IDs, want.IDs) {
				return true
			}
		}
	}
	return false
}

func matchesAssigneeIDs(acl ACL, ids []string) bool {
	for _, g := range acl.Assignees {
		if overlaps(g.IDs, ids) {
			return true
		}
	}
	return false
}

func matchesResources(acl ACL, wanted []ResourceGroup) bool {
	for _, want := range wanted {
		for _, rule := range acl.Rules {
			if rule.Resource.Type == want.Type && overlaps(rule.Resource.IDs, want.IDs) {
				return true
			}
		}
	}
	return false
}

func matchesResourceTypes(acl ACL, types []ResourceType, permission *Permission) bool {
	for _, t := range types {
		for _, rule := range acl.Rules {
			if rule.Resource.Type != t {
				continue
			}
			if permission == nil || rule.HasPermission(*permission) {
				return true
			}
		}
	}
	return false
}

func matchesPermissions(acl ACL, perms []Permission) bool {
	for _, p := range perms {
		if acl.GrantsPermission(p) {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// restrictionsEqual compares restriction sets as sets of language codes. A
// nil set and an empty set both mean "unrestricted" and compare equal.
func restrictionsEqual(a, b *RestrictionSet) bool {
	var aCodes, bCodes []string
	if a != nil {
		aCodes = a.LanguageCodes
	}
	if b != nil {
		bCodes = b.LanguageCodes
	}
	if len(aCodes) != len(bCodes) {
		return false
	}
	as := append([]string(nil), aCodes...)
	bs := append([]string(nil), bCodes...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// ResourceGroupKey builds the reduction key for a rule's resource type and the
// owning ACL's restriction set, so language-limited grants never merge with
// unrestricted ones.
func ResourceGroupKey(t ResourceType, restrictions *RestrictionSet) string {
	if restrictions == nil || len(restrictions.LanguageCodes) == 0 {
		return fmt.Sprintf("%d", t)
	}
	codes := append([]string(nil), restrictions.LanguageCodes...)
	sort.Strings(codes)
	return fmt.Sprintf("%d-in-langCodes-%s", t, strings.Join(codes, ","))
}

// ReduceResourceGroups collapses matched ACLs to a deduplicated union of
// resource ids per (resource type, restriction set) key.
func ReduceResourceGroups(acls []ACL) []ResourceGroupWithKey {
	type bucket struct {
		t    ResourceType
		ids  []string
		seen map[string]bool
	}
	buckets := make(map[string]*bucket)
	var order []string
	for _, acl := range acls {
		for _, rule := range acl.Rules {
			key := ResourceGroupKey(rule.Resource.Type, acl.RestrictionSet)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{t: rule.Resource.Type, seen: make(map[string]bool)}
				buckets[key] = b
				order = append(order, key)
			}
			for _, id := range rule.Resource.IDs {
				if !b.seen[id] {
					b.seen[id] = true
					b.ids = append(b.ids, id)
				}
			}
		}
	}
	out := make([]ResourceGroupWithKey, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, ResourceGroupWithKey{
			ResourceGroup: ResourceGroup{Type: b.t, IDs: b.ids},
			Key:           key,
		})
	}
	return out
}

// AccountPermission names one (resource type, permission) capability.
type AccountPermission struct {
	ResourceType ResourceType `json:"resourceType"`
	Permission   Permission   `json:"permission"`
}

// AccountsWithPermissions aggregates the capabilities a set of assignees
// holds per account.
type AccountsWithPermissions struct {
	AccountID   string              `json:"accountId"`
	Permissions []AccountPermission `json:"permissions"`
}

// ReduceAccountsWithPermission groups matched ACLs by account and keeps only
// the requested (resource type, permission) pairs each account's rules carry.
func ReduceAccountsWithPermission(acls []ACL, queries []AccountPermission) []AccountsWithPermissions {
	perAccount := make(map[string]map[AccountPermission]bool)
	var order []string
	for _, acl := range acls {
		caps, ok := perAccount[acl.AccountID]
		if !ok {
			caps = make(map[AccountPermission]bool)
			perAccount[acl.AccountID] = caps
			order = append(order, acl.AccountID)
		}
		for _, rule := range acl.Rules {
			for _, q := range queries {
				if rule.Resource.Type == q.ResourceType && rule.HasPermission(q.Permission) {
					caps[q] = true
				}
			}
		}
	}
	var out []AccountsWithPermissions
	for _, accountID := range order {
		caps := perAccount[accountID]
		if len(caps) == 0 {
			continue
		}
		entry := AccountsWithPermissions{AccountID: accountID}
		for _, q := range queries {
			if caps[q] {
				entry.Permissions = append(entry.Permissions, q)
			}
		}
		out = append(out, entry)
	}
	return out
}

// FilterByMaxPermission keeps the ACLs whose highest-scoring permission is
// exactly the given one.
func FilterByMaxPermission(acls []ACL, p Permission) []ACL {
	target := p.Score()
	var out []ACL
	for _, acl := range acls {
		if acl.MaxPermission().Score() == target {
			out = append(out, acl)
		}
	}
	return out
}
