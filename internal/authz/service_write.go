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
	"log/slog"
	"strings"

	"github.com/docuflow/docuflow/internal/audit"
	"github.com/docuflow/docuflow/internal/observability/logger"
)

// duplicateBatchSize bounds how many resource pairs are copied per store
// round.
const duplicateBatchSize = 10

// CreateDefaultAccountRoles bootstraps a fresh account's access control:
// one document-level ACL per built-in role on the root collection plus the
// account-level admin ACL. Idempotent; an account that already carries its
// admin ACL is left untouched.
func (s *Service) CreateDefaultAccountRoles(ctx context.Context, accountID, actorID string) ([]ACL, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	existing, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:  []string{accountID},
		Resources:   []ResourceGroup{{Type: ResourceAccount, IDs: []string{accountID}}},
		Permissions: []Permission{PermissionEdit},
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}
	root, err := s.content.RootCollection(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root collection: %w", err)
	}
	var created []ACL
	for _, acl := range DefaultAccountACLs(accountID, root, s.roles.Builtins()) {
		inserted, err := s.acls.Create(ctx, acl)
		if err != nil {
			return created, fmt.Errorf("failed to create default acl %s: %w", acl.Name, err)
		}
		created = append(created, inserted)
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAclCreated,
		AccountID: accountID,
		ActorID:   actorID,
		Metadata:  map[string]any{"bootstrap": true, "count": len(created)},
	})
	return created, nil
}

// extractReadAcl picks the unique VIEW-only ACL out of the matches: exactly
// one rule whose permission set is exactly {VIEW}. More than one candidate is
// a data-integrity violation and fails the operation; it is never resolved by
// picking one.
func extractReadAcl(acls []ACL) (ACL, bool, error) {
	var candidates []ACL
	for _, acl := range acls {
		if len(acl.Rules) != 1 {
			continue
		}
		perms := acl.Rules[0].Permissions
		if len(perms) == 1 && perms[0] == PermissionView {
			candidates = append(candidates, acl)
		}
	}
	switch len(candidates) {
	case 0:
		return ACL{}, false, nil
	case 1:
		return candidates[0], true, nil
	default:
		return ACL{}, false, &IntegrityError{Reason: "multiple readonly acls found", AclIDs: aclIDs(candidates)}
	}
}

// GrantPublicReadAccess makes the document readable by anyone. The PUBLIC
// assignee is added to the document's unique VIEW-only ACL, synthesized from
// the Reader role if it does not exist yet.
func (s *Service) GrantPublicReadAccess(ctx context.Context, accountID, documentID, actorID string) (ACL, error) {
	readAcl, found, err := s.findReadAcl(ctx, accountID, documentID)
	if err != nil {
		return ACL{}, err
	}
	var result ACL
	if found {
		result, err = s.acls.Update(ctx, readAcl.ID, readAcl.AddPublicAssignee())
	} else {
		acl := NewDocumentACL(accountID, documentID, s.roles.Builtins().Reader, nil)
		result, err = s.acls.Create(ctx, acl.AddPublicAssignee())
	}
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypePublicReadGranted,
		AccountID: accountID,
		ActorID:   actorID,
		AclID:     result.ID,
		Metadata:  map[string]any{"document_id": documentID},
	})
	s.notifyPublicChange(ctx, accountID)
	return result, nil
}

// RevokePublicReadAccess removes the PUBLIC assignee from the document's
// unique VIEW-only ACL.
func (s *Service) RevokePublicReadAccess(ctx context.Context, accountID, documentID, actorID string) (ACL, error) {
	readAcl, found, err := s.findReadAcl(ctx, accountID, documentID)
	if err != nil {
		return ACL{}, err
	}
	if !found {
		return ACL{}, ErrAclNotFound
	}
	result, err := s.acls.Update(ctx, readAcl.ID, readAcl.RemovePublicAssignee())
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypePublicReadRevoked,
		AccountID: accountID,
		ActorID:   actorID,
		AclID:     result.ID,
		Metadata:  map[string]any{"document_id": documentID},
	})
	s.notifyPublicChange(ctx, accountID)
	return result, nil
}

func (s *Service) findReadAcl(ctx context.Context, accountID, documentID string) (ACL, bool, error) {
	if accountID == "" {
		return ACL{}, false, ErrMissingAccountID
	}
	matches, err := s.acls.FindMatching(ctx, Query{
		AccountIDs: []string{accountID},
		Resources:  []ResourceGroup{{Type: ResourceDocument, IDs: []string{documentID}}},
	})
	if err != nil {
		return ACL{}, false, err
	}
	return extractReadAcl(matches)
}

// AddAccountAdmin grants a user account administration: the user is added to
// both the document-level ADMIN ACL on the root collection and the
// account-level EDIT ACL. Both updates must succeed for the call to succeed.
func (s *Service) AddAccountAdmin(ctx context.Context, accountID, userID, actorID string) error {
	return s.mutateAdminAcls(ctx, accountID, actorID, audit.TypeAdminAdded, userID, func(acl ACL) ACL {
		return acl.AddAssignee(AssigneeUser, userID)
	})
}

// RemoveAccountAdmin revokes a user's account administration. Removing the
// last admin assignee is rejected before any write happens.
func (s *Service) RemoveAccountAdmin(ctx context.Context, accountID, userID, actorID string) error {
	return s.mutateAdminAcls(ctx, accountID, actorID, audit.TypeAdminRemoved, userID, func(acl ACL) ACL {
		return acl.RemoveAssignee(AssigneeUser, userID)
	})
}

// AddAccountAdminUserGroup grants account administration to every current and
// future member of the group.
func (s *Service) AddAccountAdminUserGroup(ctx context.Context, accountID, groupID, actorID string) error {
	return s.mutateAdminAcls(ctx, accountID, actorID, audit.TypeAdminAdded, groupID, func(acl ACL) ACL {
		return acl.AddAssignee(AssigneeUserGroup, groupID)
	})
}

func (s *Service) mutateAdminAcls(ctx context.Context, accountID, actorID, eventType, subjectID string, mutate func(ACL) ACL) error {
	docAcl, accountAcl, err := s.findAdminAcls(ctx, accountID)
	if err != nil {
		return err
	}
	updatedDoc := mutate(docAcl)
	updatedAccount := mutate(accountAcl)
	if len(updatedDoc.Assignees) == 0 || len(updatedAccount.Assignees) == 0 {
		return &InvariantError{Reason: "cannot remove the last admin of account " + accountID}
	}
	// Sequential updates to two records; partial completion surfaces as an
	// error, there is no two-phase commit.
	if _, err := s.acls.Update(ctx, docAcl.ID, updatedDoc); err != nil {
		return fmt.Errorf("failed to update admin acl %s: %w", docAcl.ID, err)
	}
	if _, err := s.acls.Update(ctx, accountAcl.ID, updatedAccount); err != nil {
		return fmt.Errorf("failed to update admin acl %s: %w", accountAcl.ID, err)
	}
	s.audit.Log(ctx, audit.Event{
		Type:      eventType,
		AccountID: accountID,
		ActorID:   actorID,
		AclID:     docAcl.ID,
		Metadata:  map[string]any{"subject_id": subjectID},
	})
	s.invalidateAclAssignees(ctx, docAcl)
	s.invalidateAclAssignees(ctx, updatedDoc)
	return nil
}

// AddAclAssignee adds the identity to the ACL's assignee group of the given
// type.
func (s *Service) AddAclAssignee(ctx context.Context, aclID string, t AssigneeType, assigneeID, actorID string) (ACL, error) {
	acl, err := s.acls.Get(ctx, aclID)
	if err != nil {
		return ACL{}, err
	}
	updated, err := s.acls.Update(ctx, aclID, acl.AddAssignee(t, assigneeID))
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAssigneeAdded,
		AccountID: updated.AccountID,
		ActorID:   actorID,
		AclID:     aclID,
		Metadata:  map[string]any{"assignee_type": t.String(), "assignee_id": assigneeID},
	})
	s.invalidateAclAssignees(ctx, updated)
	return updated, nil
}

// RemoveAclAssignee removes the identity from the ACL's assignee group of the
// given type. Emptying the assignee list of the admin ACL is rejected before
// any write happens.
func (s *Service) RemoveAclAssignee(ctx context.Context, aclID string, t AssigneeType, assigneeID, actorID string) (ACL, error) {
	acl, err := s.acls.Get(ctx, aclID)
	if err != nil {
		return ACL{}, err
	}
	next := acl.RemoveAssignee(t, assigneeID)
	if len(next.Assignees) == 0 && acl.Name == s.roles.Builtins().Admin.PluralName() {
		return ACL{}, &InvariantError{Reason: "cannot remove the last assignee of acl " + aclID}
	}
	updated, err := s.acls.Update(ctx, aclID, next)
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAssigneeRemoved,
		AccountID: updated.AccountID,
		ActorID:   actorID,
		AclID:     aclID,
		Metadata:  map[string]any{"assignee_type": t.String(), "assignee_id": assigneeID},
	})
	// Fan out over the pre-mutation assignee list so the removed identity's
	// cache entry is dropped too.
	s.invalidateAclAssignees(ctx, acl)
	return updated, nil
}

// UpdateAclAssignee replaces one assignee id with another in a single write.
func (s *Service) UpdateAclAssignee(ctx context.Context, aclID string, t AssigneeType, fromID, toID, actorID string) (ACL, error) {
	acl, err := s.acls.Get(ctx, aclID)
	if err != nil {
		return ACL{}, err
	}
	updated, err := s.acls.Update(ctx, aclID, acl.RemoveAssignee(t, fromID).AddAssignee(t, toID))
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAssigneeAdded,
		AccountID: updated.AccountID,
		ActorID:   actorID,
		AclID:     aclID,
		Metadata:  map[string]any{"assignee_type": t.String(), "from_id": fromID, "to_id": toID},
	})
	s.invalidateAclAssignees(ctx, acl)
	s.invalidateAclAssignees(ctx, updated)
	return updated, nil
}

// CreateAcl persists a caller-assembled ACL.
func (s *Service) CreateAcl(ctx context.Context, acl ACL, actorID string) (ACL, error) {
	if acl.AccountID == "" {
		return ACL{}, ErrMissingAccountID
	}
	if acl.ID == "" {
		acl.ID = NewAclID()
	}
	created, err := s.acls.Create(ctx, acl)
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAclCreated,
		AccountID: created.AccountID,
		ActorID:   actorID,
		AclID:     created.ID,
	})
	s.invalidateAclAssignees(ctx, created)
	return created, nil
}

// UpdateAcl persists a replacement ACL under an existing id.
func (s *Service) UpdateAcl(ctx context.Context, aclID string, acl ACL, actorID string) (ACL, error) {
	previous, err := s.acls.Get(ctx, aclID)
	if err != nil {
		return ACL{}, err
	}
	updated, err := s.acls.Update(ctx, aclID, acl)
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAclUpdated,
		AccountID: updated.AccountID,
		ActorID:   actorID,
		AclID:     aclID,
	})
	s.invalidateAclAssignees(ctx, previous)
	s.invalidateAclAssignees(ctx, updated)
	return updated, nil
}

// DeleteAcl removes an ACL.
func (s *Service) DeleteAcl(ctx context.Context, aclID, actorID string) error {
	acl, err := s.acls.Get(ctx, aclID)
	if err != nil {
		return err
	}
	if err := s.acls.Delete(ctx, aclID); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAclDeleted,
		AccountID: acl.AccountID,
		ActorID:   actorID,
		AclID:     aclID,
	})
	s.invalidateAclAssignees(ctx, acl)
	return nil
}

// findDocumentAclByRoleAndRestrictions looks up the ACL already materialized
// for the role and restriction set on the document. More than one match is
// data drift, not corruption: log and use the first.
func (s *Service) findDocumentAclByRoleAndRestrictions(ctx context.Context, accountID, documentID, roleID string, restrictions *RestrictionSet) (ACL, bool, error) {
	if restrictions == nil {
		// Pin the lookup to unrestricted ACLs; a nil restriction filter would
		// match language-limited ones too.
		restrictions = &RestrictionSet{}
	}
	matches, err := s.acls.FindMatching(ctx, Query{
		AccountIDs:   []string{accountID},
		Resources:    []ResourceGroup{{Type: ResourceDocument, IDs: []string{documentID}}},
		RoleID:       roleID,
		Restrictions: restrictions,
	})
	if err != nil {
		return ACL{}, false, err
	}
	if len(matches) == 0 {
		return ACL{}, false, nil
	}
	if len(matches) > 1 {
		slog.WarnContext(ctx, "duplicate acl for role and restrictions, using first",
			logger.AccountID(accountID),
			logger.RoleID(roleID),
			"acl_ids", aclIDs(matches),
		)
	}
	return matches[0], true, nil
}

// AddDocumentAcl grants the assignee the role on the document, reusing the
// document's existing ACL for that role and restriction set when present.
func (s *Service) AddDocumentAcl(ctx context.Context, accountID, documentID, roleID string, t AssigneeType, assigneeID string, restrictions *RestrictionSet, actorID string) (ACL, error) {
	role, err := s.roles.RoleByID(ctx, roleID)
	if err != nil {
		return ACL{}, err
	}
	existing, found, err := s.findDocumentAclByRoleAndRestrictions(ctx, accountID, documentID, role.RoleID, restrictions)
	if err != nil {
		return ACL{}, err
	}
	var result ACL
	if found {
		result, err = s.acls.Update(ctx, existing.ID, existing.AddAssignee(t, assigneeID))
	} else {
		acl := NewDocumentACL(accountID, documentID, role, restrictions)
		result, err = s.acls.Create(ctx, acl.AddAssignee(t, assigneeID))
	}
	if err != nil {
		return ACL{}, err
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAssigneeAdded,
		AccountID: accountID,
		ActorID:   actorID,
		AclID:     result.ID,
		Metadata: map[string]any{
			"document_id": documentID,
			"role_id":     role.RoleID,
			"assignee_id": assigneeID,
		},
	})
	s.invalidateAclAssignees(ctx, result)
	return result, nil
}

// ResourcePair names a source resource and the copy it was duplicated to.
type ResourcePair struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
}

// DuplicateResourceAcls copies the access control of duplicated resources:
// every ACL matching a source id is re-created under a fresh id with the
// source id substituted by the target id in resource ids, name and
// description. Sources are never mutated.
func (s *Service) DuplicateResourceAcls(ctx context.Context, pairs []ResourcePair, t ResourceType, accountID, actorID string) ([]ACL, error) {
	var created []ACL
	for start := 0; start < len(pairs); start += duplicateBatchSize {
		end := start + duplicateBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		for _, pair := range pairs[start:end] {
			matches, err := s.acls.FindMatching(ctx, Query{
				AccountIDs: accountIDList(accountID),
				Resources:  []ResourceGroup{{Type: t, IDs: []string{pair.FromID}}},
			})
			if err != nil {
				return created, err
			}
			for _, source := range matches {
				copied, err := s.acls.Create(ctx, duplicateAcl(source, pair.FromID, pair.ToID))
				if err != nil {
					return created, fmt.Errorf("failed to duplicate acl %s: %w", source.ID, err)
				}
				created = append(created, copied)
			}
		}
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAclCreated,
		AccountID: accountID,
		ActorID:   actorID,
		Metadata:  map[string]any{"duplicated": len(created)},
	})
	for _, acl := range created {
		s.invalidateAclAssignees(ctx, acl)
	}
	return created, nil
}

func duplicateAcl(source ACL, fromID, toID string) ACL {
	next := source
	next.ID = NewAclID()
	next.Name = strings.ReplaceAll(source.Name, fromID, toID)
	next.Description = strings.ReplaceAll(source.Description, fromID, toID)
	next.Assignees = cloneAssignees(source.Assignees)
	next.Rules = make([]Rule, len(source.Rules))
	for i, rule := range source.Rules {
		ids := make([]string, len(rule.Resource.IDs))
		for j, id := range rule.Resource.IDs {
			ids[j] = strings.ReplaceAll(id, fromID, toID)
		}
		perms := make([]Permission, len(rule.Permissions))
		copy(perms, rule.Permissions)
		next.Rules[i] = Rule{
			Resource:    ResourceGroup{Type: rule.Resource.Type, IDs: ids},
			Permissions: perms,
		}
	}
	return next
}

// RemoveResourceFromAcls strips a deleted resource's id from every ACL rule
// mentioning it. ACLs whose rules end up empty are deleted.
func (s *Service) RemoveResourceFromAcls(ctx context.Context, resourceID string) error {
	matches, err := s.acls.FindMatching(ctx, Query{
		Resources: []ResourceGroup{{Type: ResourceDocument, IDs: []string{resourceID}}},
	})
	if err != nil {
		return err
	}
	for _, acl := range matches {
		var rules []Rule
		for _, rule := range acl.Rules {
			kept := make([]string, 0, len(rule.Resource.IDs))
			for _, id := range rule.Resource.IDs {
				if id != resourceID {
					kept = append(kept, id)
				}
			}
			if len(kept) == 0 {
				continue
			}
			rules = append(rules, Rule{
				Resource:    ResourceGroup{Type: rule.Resource.Type, IDs: kept},
				Permissions: rule.Permissions,
			})
		}
		if len(rules) == 0 {
			if err := s.acls.Delete(ctx, acl.ID); err != nil {
				return fmt.Errorf("failed to delete acl %s: %w", acl.ID, err)
			}
		} else if _, err := s.acls.Update(ctx, acl.ID, acl.WithRules(rules)); err != nil {
			return fmt.Errorf("failed to update acl %s: %w", acl.ID, err)
		}
		s.invalidateAclAssignees(ctx, acl)
	}
	return nil
}

// AddUserToAccount grants a new account member the account's default role on
// the root collection.
func (s *Service) AddUserToAccount(ctx context.Context, accountID, userID, actorID string) (ACL, error) {
	role, err := s.roles.DefaultRole(ctx, accountID)
	if err != nil {
		return ACL{}, err
	}
	root, err := s.content.RootCollection(ctx, accountID)
	if err != nil {
		return ACL{}, fmt.Errorf("failed to resolve root collection: %w", err)
	}
	return s.AddDocumentAcl(ctx, accountID, root, role.RoleID, AssigneeUser, userID, nil, actorID)
}

// RemoveUserFromAccount removes the user from every ACL of the account.
func (s *Service) RemoveUserFromAccount(ctx context.Context, accountID, userID, actorID string) error {
	return s.RemoveAssigneeFromAccount(ctx, accountID, AssigneeUser, userID, actorID)
}

// RemoveUsergroupFromAccount removes a deleted group from every ACL of the
// account. Cache invalidation fans out to the group's current members before
// the membership record disappears.
func (s *Service) RemoveUsergroupFromAccount(ctx context.Context, accountID, groupID, actorID string) error {
	return s.RemoveAssigneeFromAccount(ctx, accountID, AssigneeUserGroup, groupID, actorID)
}

// RemoveAssigneeFromAccount removes the identity from every ACL of the
// account mentioning it. Used when an identity leaves the account entirely,
// so the last-admin guard does not apply here.
func (s *Service) RemoveAssigneeFromAccount(ctx context.Context, accountID string, t AssigneeType, assigneeID, actorID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	matches, err := s.acls.FindMatching(ctx, Query{
		AccountIDs: []string{accountID},
		Assignees:  []AssigneeGroup{{Type: t, IDs: []string{assigneeID}}},
	})
	if err != nil {
		return err
	}
	for _, acl := range matches {
		if _, err := s.acls.Update(ctx, acl.ID, acl.RemoveAssignee(t, assigneeID)); err != nil {
			return fmt.Errorf("failed to update acl %s: %w", acl.ID, err)
		}
		s.invalidateAclAssignees(ctx, acl)
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAssigneeRemoved,
		AccountID: accountID,
		ActorID:   actorID,
		Metadata: map[string]any{
			"assignee_type": t.String(),
			"assignee_id":   assigneeID,
			"acl_count":     len(matches),
		},
	})
	return nil
}

// DeleteAllForAccount purges the account's ACLs and custom roles. Cache
// entries of affected users are left to expire by TTL.
func (s *Service) DeleteAllForAccount(ctx context.Context, accountID, actorID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	if err := s.acls.DeleteMatching(ctx, Query{AccountIDs: []string{accountID}}); err != nil {
		return fmt.Errorf("failed to delete acls: %w", err)
	}
	if err := s.roles.DeleteForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete custom roles: %w", err)
	}
	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeAccountPurged,
		AccountID: accountID,
		ActorID:   actorID,
	})
	return nil
}
