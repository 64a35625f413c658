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

	"github.com/docuflow/docuflow/internal/observability/logger"
)

// editorAccountQueries are the coarse capabilities the permission cache holds
// per user. VIEW is deliberately excluded to bound the cache's size.
var editorAccountQueries = []AccountPermission{
	{ResourceType: ResourceDocument, Permission: PermissionEdit},
	{ResourceType: ResourceDocument, Permission: PermissionAdmin},
	{ResourceType: ResourceAccount, Permission: PermissionEdit},
	{ResourceType: ResourceAccount, Permission: PermissionAdmin},
}

// AccountsForEditor returns the accounts the user can edit or administer,
// read through the permission cache. Cache failures degrade to a store
// lookup; they never fail the call.
func (s *Service) AccountsForEditor(ctx context.Context, userID string) ([]AccountsWithPermissions, error) {
	cached, err := s.cache.AccountsForUser(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "permission cache read failed", logger.UserID(userID), logger.Error(err))
	} else if len(cached) > 0 {
		return cached, nil
	}
	accounts, err := s.findAccountsWithPermission(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetAccountsForUser(ctx, userID, accounts); err != nil {
		slog.WarnContext(ctx, "permission cache write failed", logger.UserID(userID), logger.Error(err))
	}
	return accounts, nil
}

// HasAvailableEditorAccount reports whether the user can edit or administer
// at least one of the given accounts.
func (s *Service) HasAvailableEditorAccount(ctx context.Context, accountIDs []string, userID string) (bool, error) {
	accounts, err := s.AccountsForEditor(ctx, userID)
	if err != nil {
		return false, err
	}
	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}
	for _, account := range accounts {
		if wanted[account.AccountID] && len(account.Permissions) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// findAccountsWithPermission aggregates, per account, which of the coarse
// (resource type, permission) capabilities the user's assignee set holds.
func (s *Service) findAccountsWithPermission(ctx context.Context, userID string) ([]AccountsWithPermissions, error) {
	assignees, err := s.assignees.Assignees(ctx, AssigneeUser, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	// Over-fetch on the permission names alone, then narrow to the exact
	// (resource type, permission) pairs during reduction.
	acls, err := s.acls.FindMatching(ctx, Query{
		Assignees:   assignees,
		Permissions: []Permission{PermissionEdit, PermissionAdmin},
	})
	if err != nil {
		return nil, err
	}
	return ReduceAccountsWithPermission(acls, editorAccountQueries), nil
}

// HandleCacheOnGroupMemberRemoval invalidates removed members' cache entries.
// Unless forceFlush is set, members are only invalidated when the group is
// referenced by at least one ACL carrying EDIT or ADMIN; dropping entries for
// non-privileged groups would be pointless churn.
func (s *Service) HandleCacheOnGroupMemberRemoval(ctx context.Context, accountID, groupID string, memberIDs []string, forceFlush bool) error {
	if !forceFlush {
		matches, err := s.acls.FindMatching(ctx, Query{
			AccountIDs:  accountIDList(accountID),
			Assignees:   []AssigneeGroup{{Type: AssigneeUserGroup, IDs: []string{groupID}}},
			Permissions: []Permission{PermissionEdit, PermissionAdmin},
		})
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
	}
	s.invalidateUsers(ctx, memberIDs)
	return nil
}

// invalidateAclAssignees drops the cache entries of every user the ACL could
// affect. Only EDIT and ADMIN grants live in the cache, so other ACLs are
// skipped. USERGROUP assignees fan out to the group's current membership,
// resolved at invalidation time because it may have changed since the grant.
// The fan-out is asynchronous and best effort; a failed invalidation leaves a
// stale entry that expires by TTL.
func (s *Service) invalidateAclAssignees(ctx context.Context, acl ACL) {
	if !acl.GrantsEditOrAdmin() {
		return
	}
	users := acl.UserAssignees()
	groups := acl.UserGroupAssignees()
	if len(users) == 0 && len(groups) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		seen := make(map[string]bool)
		var fanout []string
		for _, id := range users {
			if !seen[id] {
				seen[id] = true
				fanout = append(fanout, id)
			}
		}
		for _, groupID := range groups {
			members, err := s.groups.GroupMembers(ctx, acl.AccountID, groupID)
			if err != nil {
				slog.WarnContext(ctx, "failed to resolve group members for cache invalidation",
					logger.AccountID(acl.AccountID), "group_id", groupID, logger.Error(err))
				continue
			}
			for _, id := range members {
				if !seen[id] {
					seen[id] = true
					fanout = append(fanout, id)
				}
			}
		}
		for _, userID := range fanout {
			if err := s.cache.Invalidate(ctx, userID); err != nil {
				slog.WarnContext(ctx, "permission cache invalidation failed",
					logger.UserID(userID), logger.Error(err))
			}
		}
	}()
}

// invalidateUsers drops the given users' cache entries asynchronously.
func (s *Service) invalidateUsers(ctx context.Context, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, userID := range userIDs {
			if err := s.cache.Invalidate(ctx, userID); err != nil {
				slog.WarnContext(ctx, "permission cache invalidation failed",
					logger.UserID(userID), logger.Error(err))
			}
		}
	}()
}

// notifyPublicChange tells the content collaborators that the account's set
// of public documents changed. Best effort; the granting mutation has already
// succeeded.
func (s *Service) notifyPublicChange(ctx context.Context, accountID string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.content.InvalidatePublicItems(ctx, accountID); err != nil {
			slog.WarnContext(ctx, "failed to invalidate public items",
				logger.AccountID(accountID), logger.Error(err))
		}
		if err := s.content.PublicDocumentCountChanged(ctx, accountID); err != nil {
			slog.WarnContext(ctx, "failed to notify public document count change",
				logger.AccountID(accountID), logger.Error(err))
		}
	}()
}
