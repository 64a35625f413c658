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

func TestCreateDefaultAccountRoles(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	created, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	require.Len(t, created, 6)

	all, err := f.service.AccountAcls(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestCreateDefaultAccountRolesIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)

	again, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := f.service.AccountAcls(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, all, 6, "a bootstrapped account is left untouched")
}

func TestCreateDefaultAccountRolesRequiresAccountID(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(context.Background(), "", "system")
	assert.ErrorIs(t, err, ErrMissingAccountID)
}

func TestExtractReadAcl(t *testing.T) {
	readOnly := ACL{ID: "acl-read", Rules: []Rule{{Permissions: []Permission{PermissionView}}}}
	editor := ACL{ID: "acl-edit", Rules: []Rule{{Permissions: PermissionEdit.Inherited()}}}

	acl, found, err := extractReadAcl([]ACL{editor, readOnly})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "acl-read", acl.ID)

	_, found, err = extractReadAcl([]ACL{editor})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExtractReadAclIntegrityViolation(t *testing.T) {
	a := ACL{ID: "acl-a", Rules: []Rule{{Permissions: []Permission{PermissionView}}}}
	b := ACL{ID: "acl-b", Rules: []Rule{{Permissions: []Permission{PermissionView}}}}

	_, _, err := extractReadAcl([]ACL{a, b})
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
	assert.Contains(t, err.Error(), "multiple readonly acls")
}

func TestGrantPublicReadAccessCreatesReadAcl(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	acl, err := f.service.GrantPublicReadAccess(ctx, "acc-1", "doc-1", "actor-1")
	require.NoError(t, err)
	assert.True(t, acl.HasPublicAssignee())
	assert.Equal(t, RoleIDReader, acl.RoleID)
	require.Len(t, acl.Rules, 1)
	assert.Equal(t, []Permission{PermissionView}, acl.Rules[0].Permissions)

	assert.Eventually(t, func() bool {
		return f.content.publicChangeCount() > 0
	}, time.Second, 10*time.Millisecond, "content service must be notified")
}

func TestGrantPublicReadAccessReusesExistingReadAcl(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	existing := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionView, userAssignee("user-1")))

	acl, err := f.service.GrantPublicReadAccess(ctx, "acc-1", "doc-1", "actor-1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, acl.ID)
	assert.True(t, acl.HasPublicAssignee())
	assert.True(t, acl.HasAssignee(AssigneeUser, "user-1"), "existing assignees survive")
}

func TestRevokePublicReadAccess(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.GrantPublicReadAccess(ctx, "acc-1", "doc-1", "actor-1")
	require.NoError(t, err)

	acl, err := f.service.RevokePublicReadAccess(ctx, "acc-1", "doc-1", "actor-1")
	require.NoError(t, err)
	assert.False(t, acl.HasPublicAssignee())
}

func TestRevokePublicReadAccessWithoutReadAcl(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.RevokePublicReadAccess(context.Background(), "acc-1", "doc-1", "actor-1")
	assert.ErrorIs(t, err, ErrAclNotFound)
}

func TestAddAccountAdminUpdatesBothAcls(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)

	require.NoError(t, f.service.AddAccountAdmin(ctx, "acc-1", "admin-1", "system"))

	docAcl, accountAcl, err := f.service.findAdminAcls(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, docAcl.HasAssignee(AssigneeUser, "admin-1"))
	assert.True(t, accountAcl.HasAssignee(AssigneeUser, "admin-1"))
}

func TestRemoveAccountAdminLastAdminGuard(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	require.NoError(t, f.service.AddAccountAdmin(ctx, "acc-1", "admin-1", "system"))

	err = f.service.RemoveAccountAdmin(ctx, "acc-1", "admin-1", "system")
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))

	// The guard rejects before any write; the admin is still in place.
	admins, err := f.service.GetAccountAdmins(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1"}, admins)
}

func TestRemoveAccountAdminWithRemainingAdmin(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	require.NoError(t, f.service.AddAccountAdmin(ctx, "acc-1", "admin-1", "system"))
	require.NoError(t, f.service.AddAccountAdmin(ctx, "acc-1", "admin-2", "system"))

	require.NoError(t, f.service.RemoveAccountAdmin(ctx, "acc-1", "admin-1", "system"))

	admins, err := f.service.GetAccountAdmins(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-2"}, admins)
}

func TestAddAclAssignee(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	created := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit))

	updated, err := f.service.AddAclAssignee(ctx, created.ID, AssigneeUser, "user-1", "actor-1")
	require.NoError(t, err)
	assert.True(t, updated.HasAssignee(AssigneeUser, "user-1"))
}

func TestRemoveAclAssigneeAdminAclGuard(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	acl := documentAcl("acc-1", "doc-1", PermissionAdmin, userAssignee("admin-1"))
	acl.Name = "Admins"
	created := f.mustCreate(t, acl)

	_, err := f.service.RemoveAclAssignee(ctx, created.ID, AssigneeUser, "admin-1", "actor-1")
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))
}

func TestRemoveAclAssigneeNonAdminAclMayEmpty(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	created := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionView, userAssignee("user-1")))

	updated, err := f.service.RemoveAclAssignee(ctx, created.ID, AssigneeUser, "user-1", "actor-1")
	require.NoError(t, err)
	assert.Empty(t, updated.Assignees)
}

func TestUpdateAclAssignee(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	created := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1")))

	updated, err := f.service.UpdateAclAssignee(ctx, created.ID, AssigneeUser, "user-1", "user-2", "actor-1")
	require.NoError(t, err)
	assert.False(t, updated.HasAssignee(AssigneeUser, "user-1"))
	assert.True(t, updated.HasAssignee(AssigneeUser, "user-2"))
}

func TestCreateAclRequiresAccountID(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.CreateAcl(context.Background(), ACL{Name: "orphan"}, "actor-1")
	assert.ErrorIs(t, err, ErrMissingAccountID)
}

func TestCreateUpdateDeleteAcl(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	created, err := f.service.CreateAcl(ctx, documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1")), "actor-1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	replacement := created
	replacement.Name = "renamed"
	updated, err := f.service.UpdateAcl(ctx, created.ID, replacement, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, f.service.DeleteAcl(ctx, created.ID, "actor-1"))
	_, err = f.service.LoadAcl(ctx, created.ID)
	assert.ErrorIs(t, err, ErrAclNotFound)
}

func TestAddDocumentAclReusesAclPerRoleAndRestrictions(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	first, err := f.service.AddDocumentAcl(ctx, "acc-1", "doc-1", RoleIDReader, AssigneeUser, "user-1", nil, "actor-1")
	require.NoError(t, err)

	second, err := f.service.AddDocumentAcl(ctx, "acc-1", "doc-1", RoleIDReader, AssigneeUser, "user-2", nil, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same role and restrictions reuse the acl")
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, second.UserAssignees())

	// A different restriction set materializes a separate ACL.
	restricted, err := f.service.AddDocumentAcl(ctx, "acc-1", "doc-1", RoleIDReader, AssigneeUser, "user-3",
		&RestrictionSet{LanguageCodes: []string{"en"}}, "actor-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, restricted.ID)
}

func TestAddDocumentAclUnknownRole(t *testing.T) {
	f := newServiceFixture()
	_, err := f.service.AddDocumentAcl(context.Background(), "acc-1", "doc-1", "rol-missing", AssigneeUser, "user-1", nil, "actor-1")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestDuplicateResourceAcls(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	source := documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1"))
	source.Name = "Editors of doc-1"
	source.Description = "Grants editing on doc-1"
	f.mustCreate(t, source)

	created, err := f.service.DuplicateResourceAcls(ctx, []ResourcePair{{FromID: "doc-1", ToID: "doc-9"}},
		ResourceDocument, "acc-1", "actor-1")
	require.NoError(t, err)
	require.Len(t, created, 1)

	copied := created[0]
	assert.NotEqual(t, source.ID, copied.ID)
	assert.Equal(t, "Editors of doc-9", copied.Name)
	assert.Equal(t, "Grants editing on doc-9", copied.Description)
	assert.Equal(t, []string{"doc-9"}, copied.Rules[0].Resource.IDs)
	assert.Equal(t, []string{"user-1"}, copied.UserAssignees())

	// The source is untouched.
	reloaded, err := f.service.LoadAcl(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, reloaded.Rules[0].Resource.IDs)
}

func TestDuplicateResourceAclsManyPairs(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	pairs := make([]ResourcePair, 0, duplicateBatchSize+5)
	for i := 0; i < duplicateBatchSize+5; i++ {
		from := "doc-src-" + string(rune('a'+i))
		f.mustCreate(t, documentAcl("acc-1", from, PermissionView, userAssignee("user-1")))
		pairs = append(pairs, ResourcePair{FromID: from, ToID: from + "-copy"})
	}

	created, err := f.service.DuplicateResourceAcls(ctx, pairs, ResourceDocument, "acc-1", "actor-1")
	require.NoError(t, err)
	assert.Len(t, created, len(pairs), "every pair is copied across batch boundaries")
}

func TestRemoveResourceFromAcls(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	multi := documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1"))
	multi.Rules[0].Resource.IDs = []string{"doc-1", "doc-2"}
	kept := f.mustCreate(t, multi)
	only := f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionView, userAssignee("user-2")))

	require.NoError(t, f.service.RemoveResourceFromAcls(ctx, "doc-1"))

	reloaded, err := f.service.LoadAcl(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2"}, reloaded.Rules[0].Resource.IDs)

	// ACLs with no rules left are deleted.
	_, err = f.service.LoadAcl(ctx, only.ID)
	assert.ErrorIs(t, err, ErrAclNotFound)
}

func TestAddUserToAccountGrantsDefaultRole(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	acl, err := f.service.AddUserToAccount(ctx, "acc-1", "user-1", "actor-1")
	require.NoError(t, err)
	assert.Equal(t, RoleIDReader, acl.RoleID)
	assert.True(t, acl.HasAssignee(AssigneeUser, "user-1"))
	assert.Equal(t, []string{"root-1"}, acl.Rules[0].Resource.IDs)
}

func TestRemoveUserFromAccount(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, userAssignee("user-1", "user-2")))
	f.mustCreate(t, documentAcl("acc-1", "doc-2", PermissionView, userAssignee("user-1")))
	untouched := f.mustCreate(t, documentAcl("acc-2", "doc-3", PermissionView, userAssignee("user-1")))

	require.NoError(t, f.service.RemoveUserFromAccount(ctx, "acc-1", "user-1", "actor-1"))

	acls, err := f.service.AccountAcls(ctx, "acc-1")
	require.NoError(t, err)
	for _, acl := range acls {
		assert.False(t, acl.HasAssignee(AssigneeUser, "user-1"))
	}

	// Other accounts are untouched.
	reloaded, err := f.service.LoadAcl(ctx, untouched.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.HasAssignee(AssigneeUser, "user-1"))
}

func TestRemoveUserFromAccountSkipsLastAdminGuard(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	require.NoError(t, f.service.AddAccountAdmin(ctx, "acc-1", "admin-1", "system"))

	// Account teardown removes even the last admin.
	require.NoError(t, f.service.RemoveUserFromAccount(ctx, "acc-1", "admin-1", "actor-1"))

	admins, err := f.service.GetAccountAdmins(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, admins)
}

func TestRemoveUsergroupFromAccount(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.mustCreate(t, documentAcl("acc-1", "doc-1", PermissionEdit, groupAssignee("grp-1"), userAssignee("user-1")))

	require.NoError(t, f.service.RemoveUsergroupFromAccount(ctx, "acc-1", "grp-1", "actor-1"))

	acls, err := f.service.AccountAcls(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, acls, 1)
	assert.Empty(t, acls[0].UserGroupAssignees())
	assert.Equal(t, []string{"user-1"}, acls[0].UserAssignees())
}

func TestDeleteAllForAccount(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	_, err := f.service.CreateDefaultAccountRoles(ctx, "acc-1", "system")
	require.NoError(t, err)
	_, err = f.service.Roles().SaveRole(ctx, "Translator", false, false, []Permission{PermissionView}, "acc-1")
	require.NoError(t, err)
	survivor := f.mustCreate(t, documentAcl("acc-2", "doc-1", PermissionView, userAssignee("user-1")))

	require.NoError(t, f.service.DeleteAllForAccount(ctx, "acc-1", "actor-1"))

	acls, err := f.service.AccountAcls(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, acls)

	roles, err := f.service.Roles().AllForAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, roles, 5, "only the built-ins remain")

	_, err = f.service.LoadAcl(ctx, survivor.ID)
	assert.NoError(t, err)
}
