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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsForEditorComputesAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1")))
	f.mustCreate(t, documentAcl("acc-2", "doc-2", PermissionView, userAssignee("user-1")))

	accounts, err := f.service.AccountsForEditor(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1, "view-only accounts never qualify")
	assert.Equal(t, "acc-1", accounts[0].AccountID)
	assert.Equal(t, []AccountPermission{
		{ResourceType: ResourceDocument, Permission: PermissionEdit},
	}, accounts[0].Permissions)

	// The computed entry lands in the cache.
	cached, err := f.cache.AccountsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, accounts, cached)
}

func TestAccountsForEditorServesFromCache(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	stale := []AccountsWithPermissions{{
		AccountID:   "acc-cached",
		Permissions: []AccountPermission{{ResourceType: ResourceAccount, Permission: PermissionAdmin}},
	}}
	require.NoError(t, f.cache.SetAccountsForUser(ctx, "user-1", stale))

	accounts, err := f.service.AccountsForEditor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, stale, accounts, "a populated entry is served without a store lookup")
}

func TestAccountsForEditorThroughGroup(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.assignees().groupsByUser["user-1"] = []string{"grp-1"}
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionAdmin, groupAssignee("grp-1")))

	accounts, err := f.service.AccountsForEditor(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Contains(t, accounts[0].Permissions, AccountPermission{ResourceType: ResourceDocument, Permission: PermissionAdmin})
}

func TestHasAvailableEditorAccount(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1")))

	has, err := f.service.HasAvailableEditorAccount(ctx, []string{"acc-1", "acc-2"}, "user-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.service.HasAvailableEditorAccount(ctx, []string{"acc-2"}, "user-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHandleCacheOnGroupMemberRemovalSkipsNonPrivilegedGroups(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	// The group only holds VIEW; invalidation would be pointless churn.
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionView, groupAssignee("grp-1")))
	require.NoError(t, f.cache.SetAccountsForUser(ctx, "member-1", []AccountsWithPermissions{{AccountID: "acc-1"}}))

	require.NoError(t, f.service.HandleCacheOnGroupMemberRemoval(ctx, "acc-1", "grp-1", []string{"member-1"}, false))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.cache.invalidations())
}

func TestHandleCacheOnGroupMemberRemovalPrivilegedGroup(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, groupAssignee("grp-1")))

	require.NoError(t, f.service.HandleCacheOnGroupMemberRemoval(ctx, "acc-1", "grp-1", []string{"member-1", "member-2"}, false))

	assert.Eventually(t, func() bool {
		return len(f.cache.invalidations()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"member-1", "member-2"}, f.cache.invalidations())
}

func TestHandleCacheOnGroupMemberRemovalForceFlush(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	// No privileged ACL references the group, but forceFlush overrides.
	require.NoError(t, f.service.HandleCacheOnGroupMemberRemoval(ctx, "acc-1", "grp-1", []string{"member-1"}, true))

	assert.Eventually(t, func() bool {
		return len(f.cache.invalidations()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestInvalidationFansOutToGroupMembers(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.groups.members["grp-1"] = []string{"member-1", "member-2"}
	created := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, groupAssignee("grp-1"), userAssignee("user-1")))

	_, err := f.service.AddAclAssignee(ctx, created.ID, AssigneeUser, "user-2", "actor-1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(f.cache.invalidations()) >= 4
	}, time.Second, 10*time.Millisecond)
	// Direct users plus the group's membership, resolved at invalidation time.
	assert.ElementsMatch(t, []string{"user-1", "user-2", "member-1", "member-2"}, f.cache.invalidations())
}

func TestInvalidationSkipsViewOnlyAcls(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	created := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionView, userAssignee("user-1")))

	_, err := f.service.AddAclAssignee(ctx, created.ID, AssigneeUser, "user-2", "actor-1")
	require.NoError(t, err)

	// VIEW grants never live in the cache, so nothing is invalidated.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.cache.invalidations())
}
