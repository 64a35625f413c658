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
	"context"
	"fmt"

	"github.com/docuflow/docuflow/internal/audit"
)

// Service orchestrates assignee resolution, resource hierarchy expansion, ACL
// matching and permission aggregation. It is stateless; all state lives in the
// ACL store and the permission cache.
type Service struct {
	acls      AclRepository
	roles     *Catalog
	assignees AssigneeResolver
	resources ResourceResolver
	groups    GroupDirectory
	content   ContentService
	cache     PermissionCache
	audit     audit.Logger
}

// NewService creates a new authorization service
func NewService(
	acls AclRepository,
	roles *Catalog,
	assignees AssigneeResolver,
	resources ResourceResolver,
	groups GroupDirectory,
	content ContentService,
	cache PermissionCache,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		acls:      acls,
		roles:     roles,
		assignees: assignees,
		resources: resources,
		groups:    groups,
		content:   content,
		cache:     cache,
		audit:     auditLogger,
	}
}

// Roles exposes the role catalog.
func (s *Service) Roles() *Catalog {
	return s.roles
}

// findAclMatches is the single entry into the matching engine. An empty
// assignee set combined with an empty resource set short-circuits to an empty
// result instead of scanning the whole store.
func (s *Service) findAclMatches(ctx context.Context, assignees []AssigneeGroup, resources []ResourceGroup, permissions []Permission, accountID string) ([]ACL, error) {
	if len(assignees) == 0 && len(resources) == 0 {
		return nil, nil
	}
	return s.acls.FindMatching(ctx, MatchQuery(assignees, resources, permissions, accountID))
}

// FindResourcePermissions returns the exact permission names the user holds on
// the resource. Rule permission sets are stored inheritance-complete, so no
// lattice expansion happens here.
func (s *Service) FindResourcePermissions(ctx context.Context, userID string, t ResourceType, resourceID string, accountID string) ([]Permission, error) {
	assignees, err := s.assignees.Assignees(ctx, AssigneeUser, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	resources, err := s.resources.Resources(ctx, t, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	acls, err := s.findAclMatches(ctx, assignees, resources, nil, accountID)
	if err != nil {
		return nil, err
	}
	return ReducePermissions(acls), nil
}

// PermissionsWithRestrictions pairs a permission set with the restriction set
// it was granted under.
type PermissionsWithRestrictions struct {
	Permissions    []Permission    `json:"permissions"`
	RestrictionSet *RestrictionSet `json:"restrictionSet,omitempty"`
}

// FindResourcePermissionsWithRestrictions returns the user's permissions on
// the resource grouped by restriction set, so a language-limited grant stays
// distinguishable from an unrestricted one.
func (s *Service) FindResourcePermissionsWithRestrictions(ctx context.Context, userID string, t ResourceType, resourceID string, accountID string) ([]PermissionsWithRestrictions, error) {
	assignees, err := s.assignees.Assignees(ctx, AssigneeUser, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	resources, err := s.resources.Resources(ctx, t, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	acls, err := s.findAclMatches(ctx, assignees, resources, nil, accountID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]int)
	var out []PermissionsWithRestrictions
	for _, acl := range acls {
		key := ResourceGroupKey(t, acl.RestrictionSet)
		idx, ok := byKey[key]
		if !ok {
			idx = len(out)
			byKey[key] = idx
			out = append(out, PermissionsWithRestrictions{RestrictionSet: acl.RestrictionSet})
		}
		out[idx].Permissions = mergePermissions(out[idx].Permissions, ReducePermissions([]ACL{acl}))
	}
	return out, nil
}

func mergePermissions(existing, extra []Permission) []Permission {
	seen := make(map[Permission]bool, len(existing))
	for _, p := range existing {
		seen[p] = true
	}
	for _, p := range extra {
		if !seen[p] {
			seen[p] = true
			existing = append(existing, p)
		}
	}
	return existing
}

// FindMultipleResourcesPermissions resolves permissions for a batch of
// resources in one store round trip, keyed by the originating resource id.
func (s *Service) FindMultipleResourcesPermissions(ctx context.Context, userID string, t ResourceType, resourceIDs []string, accountID string) (map[string][]Permission, error) {
	out := make(map[string][]Permission, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return out, nil
	}
	assignees, err := s.assignees.Assignees(ctx, AssigneeUser, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	groups, err := s.resources.ResourcesArray(ctx, t, resourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	acls, err := s.findAclMatches(ctx, assignees, groups, nil, accountID)
	if err != nil {
		return nil, err
	}
	// One over-fetching query, then per-origin narrowing with the reference
	// matcher over the already-loaded ACLs.
	for _, group := range groups {
		q := MatchQuery(assignees, []ResourceGroup{group}, nil, accountID)
		var matched []ACL
		for _, acl := range acls {
			if q.Matches(acl) {
				matched = append(matched, acl)
			}
		}
		out[group.ID] = ReducePermissions(matched)
	}
	return out, nil
}

// FindPublicPermissions returns the permissions granted to anyone on the
// resource.
func (s *Service) FindPublicPermissions(ctx context.Context, t ResourceType, resourceID string, accountID string) ([]Permission, error) {
	assignees, err := s.assignees.Assignees(ctx, AssigneePublic, "", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	resources, err := s.resources.Resources(ctx, t, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	acls, err := s.findAclMatches(ctx, assignees, resources, nil, accountID)
	if err != nil {
		return nil, err
	}
	return ReducePermissions(acls), nil
}

// FindAllowedResourceGroups answers "what can this user do": every resource
// group of the given type on which the user holds the permission, reduced per
// (resource type, restriction set) key. skipPublic drops grants the user only
// holds through the PUBLIC assignee.
func (s *Service) FindAllowedResourceGroups(ctx context.Context, userID string, t ResourceType, permission Permission, skipPublic bool, accountID string) ([]ResourceGroupWithKey, error) {
	assignees, err := s.assignees.Assignees(ctx, AssigneeUser, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	if skipPublic {
		kept := assignees[:0]
		for _, g := range assignees {
			if g.Type != AssigneePublic {
				kept = append(kept, g)
			}
		}
		assignees = kept
	}
	return s.findResourceGroups(ctx, assignees, t, permission, accountIDList(accountID))
}

// FindPublicResourceGroups returns the resource groups anyone holds the
// permission on, across the given accounts. With advertisedOnly, document ids
// are narrowed to those shown in the public overview.
func (s *Service) FindPublicResourceGroups(ctx context.Context, t ResourceType, permission Permission, accountIDs []string, advertisedOnly bool) ([]ResourceGroupWithKey, error) {
	groups, err := s.findResourceGroups(ctx, []AssigneeGroup{PublicAssignee()}, t, permission, accountIDs)
	if err != nil {
		return nil, err
	}
	if !advertisedOnly || t != ResourceDocument {
		return groups, nil
	}
	for i := range groups {
		advertised, err := s.content.AdvertisedDocumentIDs(ctx, groups[i].IDs)
		if err != nil {
			return nil, fmt.Errorf("failed to filter advertised documents: %w", err)
		}
		groups[i].IDs = advertised
	}
	return groups, nil
}

func (s *Service) findResourceGroups(ctx context.Context, assignees []AssigneeGroup, t ResourceType, permission Permission, accountIDs []string) ([]ResourceGroupWithKey, error) {
	if len(assignees) == 0 {
		return nil, nil
	}
	q := Query{
		Assignees:     assignees,
		ResourceTypes: ContainingResourceTypes(t),
		Permission:    &permission,
		AccountIDs:    accountIDs,
	}
	acls, err := s.acls.FindMatching(ctx, q)
	if err != nil {
		return nil, err
	}
	return ReduceResourceGroups(acls), nil
}

// PublicItemsFilter selects which publicly readable items the anonymous path
// of FindMyResourceGroups returns.
type PublicItemsFilter int

const (
	// PublicItemsAll returns every publicly readable item.
	PublicItemsAll PublicItemsFilter = iota

	// PublicItemsAdvertisedOnly drops items hidden from the public overview.
	PublicItemsAdvertisedOnly
)

// PermissionMap pairs a permission with the resource groups it is held on.
type PermissionMap struct {
	Permission Permission             `json:"permission"`
	Resources  []ResourceGroupWithKey `json:"resources"`
}

// FindMyResourceGroups unions, per requested permission, the resource groups
// the user holds across all given accounts. Permissions with an empty result
// are dropped. Without a user id only public grants are considered, optionally
// narrowed to advertised items.
func (s *Service) FindMyResourceGroups(ctx context.Context, accountIDs []string, t ResourceType, permissions []Permission, filter PublicItemsFilter, userID string) ([]PermissionMap, error) {
	var assignees []AssigneeGroup
	if userID != "" {
		var err error
		assignees, err = s.assignees.Assignees(ctx, AssigneeUser, userID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assignees: %w", err)
		}
	}
	var out []PermissionMap
	for _, permission := range permissions {
		var groups []ResourceGroupWithKey
		var err error
		if userID == "" {
			groups, err = s.FindPublicResourceGroups(ctx, t, permission, accountIDs, filter == PublicItemsAdvertisedOnly)
		} else {
			groups, err = s.findResourceGroups(ctx, assignees, t, permission, accountIDs)
		}
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 {
			continue
		}
		out = append(out, PermissionMap{Permission: permission, Resources: groups})
	}
	return out, nil
}

// ResourceAcls returns, per resource id in the group, the ACLs governing it.
// Visibility is restricted to ACLs naming the caller among their assignees,
// unless the caller is a backend service or holds ADMIN through any matched
// ACL, in which case everything is visible.
func (s *Service) ResourceAcls(ctx context.Context, group ResourceGroup, accountID, userID string, isBackend bool) (map[string][]ACL, error) {
	out := make(map[string][]ACL, len(group.IDs))
	if len(group.IDs) == 0 {
		return out, nil
	}
	chains, err := s.resources.ResourcesArray(ctx, group.Type, group.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources: %w", err)
	}
	acls, err := s.findAclMatches(ctx, nil, chains, nil, accountID)
	if err != nil {
		return nil, err
	}
	var callerAssignees []AssigneeGroup
	if !isBackend {
		assigneeType := AssigneePublic
		if userID != "" {
			assigneeType = AssigneeUser
		}
		callerAssignees, err = s.assignees.Assignees(ctx, assigneeType, userID, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve assignees: %w", err)
		}
	}
	for _, chain := range chains {
		q := MatchQuery(nil, []ResourceGroup{chain}, nil, accountID)
		var matched []ACL
		for _, acl := range acls {
			if q.Matches(acl) {
				matched = append(matched, acl)
			}
		}
		out[chain.ID] = s.filterAclsByAssignee(matched, callerAssignees, isBackend)
	}
	return out, nil
}

// filterAclsByAssignee restricts visibility to ACLs mentioning the caller.
// Backend callers and callers holding ADMIN through any matched ACL see all.
func (s *Service) filterAclsByAssignee(matched []ACL, callerAssignees []AssigneeGroup, isBackend bool) []ACL {
	if isBackend {
		return matched
	}
	callerQuery := Query{Assignees: callerAssignees}
	var visible []ACL
	for _, acl := range matched {
		if callerQuery.Matches(acl) {
			visible = append(visible, acl)
		}
	}
	for _, acl := range visible {
		if acl.GrantsPermission(PermissionAdmin) {
			return matched
		}
	}
	return visible
}

// AccountAcls returns every ACL of the account.
func (s *Service) AccountAcls(ctx context.Context, accountID string) ([]ACL, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	return s.acls.FindMatching(ctx, Query{AccountIDs: []string{accountID}})
}

// AllResourceAcls returns every document-level ACL of the account.
func (s *Service) AllResourceAcls(ctx context.Context, accountID string) ([]ACL, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	return s.acls.FindMatching(ctx, Query{
		AccountIDs:    []string{accountID},
		ResourceTypes: []ResourceType{ResourceDocument},
	})
}

// UserDocumentAcl summarizes one direct document grant of a user.
type UserDocumentAcl struct {
	AclID          string          `json:"aclId"`
	DocumentID     string          `json:"documentId"`
	RoleName       string          `json:"roleName,omitempty"`
	RestrictionSet *RestrictionSet `json:"restrictionSet,omitempty"`
}

// UserDocumentsAcls lists the documents granted to any of the given ids (the
// user's own id and its group ids) in the account, with the granting role's
// name resolved. The id match is assignee-type agnostic.
func (s *Service) UserDocumentsAcls(ctx context.Context, userAndGroupIDs []string, accountID string) ([]UserDocumentAcl, error) {
	acls, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:  []string{accountID},
		AssigneeIDs: userAndGroupIDs,
	})
	if err != nil {
		return nil, err
	}
	roleNames := make(map[string]string)
	var out []UserDocumentAcl
	for _, acl := range acls {
		roleName, cached := roleNames[acl.RoleID]
		if !cached && acl.RoleID != "" {
			if role, err := s.roles.RoleByID(ctx, acl.RoleID); err == nil {
				roleName = role.Name
			}
			roleNames[acl.RoleID] = roleName
		}
		for _, rule := range acl.Rules {
			if rule.Resource.Type != ResourceDocument {
				continue
			}
			for _, id := range rule.Resource.IDs {
				out = append(out, UserDocumentAcl{
					AclID:          acl.ID,
					DocumentID:     id,
					RoleName:       roleName,
					RestrictionSet: acl.RestrictionSet,
				})
			}
		}
	}
	return out, nil
}

// LoadAcl retrieves an ACL by id.
func (s *Service) LoadAcl(ctx context.Context, aclID string) (ACL, error) {
	return s.acls.Get(ctx, aclID)
}

// AllResourceIdsForAccounts returns every document id under access control in
// the given accounts.
func (s *Service) AllResourceIdsForAccounts(ctx context.Context, accountIDs []string) ([]string, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	acls, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:    accountIDs,
		ResourceTypes: []ResourceType{ResourceDocument},
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, acl := range acls {
		for _, rule := range acl.Rules {
			if rule.Resource.Type != ResourceDocument {
				continue
			}
			for _, id := range rule.Resource.IDs {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

// ContainsPublicAcl reports whether any of the documents carries a public
// grant in the account.
func (s *Service) ContainsPublicAcl(ctx context.Context, accountID string, documentIDs []string) (bool, error) {
	if len(documentIDs) == 0 {
		return false, nil
	}
	acls, err := s.acls.FindMatching(ctx, Query{
		AccountIDs: accountIDList(accountID),
		Assignees:  []AssigneeGroup{PublicAssignee()},
		Resources:  []ResourceGroup{{Type: ResourceDocument, IDs: documentIDs}},
	})
	if err != nil {
		return false, err
	}
	return len(acls) > 0, nil
}

// GetAccountAdmins returns the user ids holding account administration.
func (s *Service) GetAccountAdmins(ctx context.Context, accountID string) ([]string, error) {
	docAcl, accountAcl, err := s.findAdminAcls(ctx, accountID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var users []string
	for _, id := range append(docAcl.UserAssignees(), accountAcl.UserAssignees()...) {
		if !seen[id] {
			seen[id] = true
			users = append(users, id)
		}
	}
	return users, nil
}

// GetAdminGroup returns the user group carrying account administration, or an
// empty string when admins are assigned individually.
func (s *Service) GetAdminGroup(ctx context.Context, accountID string) (string, error) {
	docAcl, accountAcl, err := s.findAdminAcls(ctx, accountID)
	if err != nil {
		return "", err
	}
	for _, acl := range []ACL{docAcl, accountAcl} {
		if groups := acl.UserGroupAssignees(); len(groups) > 0 {
			return groups[0], nil
		}
	}
	return "", nil
}

// findAdminAcls locates the two records every account's administration rests
// on: exactly one document-level ADMIN ACL on the root collection and exactly
// one account-level EDIT ACL. Any other count is either a missing bootstrap or
// an integrity violation.
func (s *Service) findAdminAcls(ctx context.Context, accountID string) (ACL, ACL, error) {
	root, err := s.content.RootCollection(ctx, accountID)
	if err != nil {
		return ACL{}, ACL{}, fmt.Errorf("failed to resolve root collection: %w", err)
	}
	docMatches, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:  []string{accountID},
		Resources:   []ResourceGroup{{Type: ResourceDocument, IDs: []string{root}}},
		Permissions: []Permission{PermissionAdmin},
	})
	if err != nil {
		return ACL{}, ACL{}, err
	}
	accountMatches, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:  []string{accountID},
		Resources:   []ResourceGroup{{Type: ResourceAccount, IDs: []string{accountID}}},
		Permissions: []Permission{PermissionEdit},
	})
	if err != nil {
		return ACL{}, ACL{}, err
	}
	if len(docMatches) == 0 || len(accountMatches) == 0 {
		return ACL{}, ACL{}, ErrAdminAclNotFound
	}
	if len(docMatches) > 1 {
		return ACL{}, ACL{}, &IntegrityError{Reason: "multiple admin acls on root collection", AclIDs: aclIDs(docMatches)}
	}
	if len(accountMatches) > 1 {
		return ACL{}, ACL{}, &IntegrityError{Reason: "multiple account edit acls", AclIDs: aclIDs(accountMatches)}
	}
	return docMatches[0], accountMatches[0], nil
}

func aclIDs(acls []ACL) []string {
	ids := make([]string, len(acls))
	for i, acl := range acls {
		ids[i] = acl.ID
	}
	return ids
}

func accountIDList(accountID string) []string {
	if accountID == "" {
		return nil
	}
	return []string{accountID}
}
