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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *Catalog {
	return NewCatalog(NewBuiltinRoles(), NewMemoryRoleRepository())
}

func TestCatalogRoleByIDBuiltinFirst(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	role, err := catalog.RoleByID(ctx, RoleIDEditor)
	require.NoError(t, err)
	assert.Equal(t, "Editor", role.Name)

	_, err = catalog.RoleByID(ctx, "rol-missing")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestCatalogRoleByIDCustom(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	saved, err := catalog.SaveRole(ctx, "Translator", false, false, []Permission{PermissionEdit, PermissionView}, "acc-1")
	require.NoError(t, err)

	role, err := catalog.RoleByID(ctx, saved.RoleID)
	require.NoError(t, err)
	assert.Equal(t, "Translator", role.Name)
	assert.Equal(t, "acc-1", role.AccountID)
	assert.False(t, role.IsBuiltin)
}

func TestCatalogAllForAccount(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	_, err := catalog.SaveRole(ctx, "Translator", false, false, []Permission{PermissionEdit}, "acc-1")
	require.NoError(t, err)
	_, err = catalog.SaveRole(ctx, "Other", false, false, []Permission{PermissionView}, "acc-2")
	require.NoError(t, err)

	roles, err := catalog.AllForAccount(ctx, "acc-1")
	require.NoError(t, err)
	// One custom role plus the five built-ins; the other account's role is
	// invisible.
	require.Len(t, roles, 6)
}

func TestCatalogDefaultRole(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	// Without a custom default the builtin Reader wins.
	role, err := catalog.DefaultRole(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, RoleIDReader, role.RoleID)

	// A custom default role overrides it.
	custom, err := catalog.SaveRole(ctx, "Member", false, true, []Permission{PermissionEdit, PermissionView}, "acc-1")
	require.NoError(t, err)

	role, err = catalog.DefaultRole(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, custom.RoleID, role.RoleID)

	// Other accounts still get the builtin default.
	role, err = catalog.DefaultRole(ctx, "acc-2")
	require.NoError(t, err)
	assert.Equal(t, RoleIDReader, role.RoleID)
}

func TestCatalogAddRemovePermission(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	saved, err := catalog.SaveRole(ctx, "Translator", false, false, []Permission{PermissionView}, "acc-1")
	require.NoError(t, err)

	grown, err := catalog.AddPermissionToRole(ctx, saved.RoleID, []Permission{PermissionEdit})
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermissionView, PermissionEdit}, grown.Permissions)

	shrunk, err := catalog.RemovePermissionFromRole(ctx, saved.RoleID, []Permission{PermissionView})
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermissionEdit}, shrunk.Permissions)

	// The replacement is persisted.
	reloaded, err := catalog.RoleByID(ctx, saved.RoleID)
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermissionEdit}, reloaded.Permissions)
}

func TestCatalogDeleteForAccount(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog()

	saved, err := catalog.SaveRole(ctx, "Translator", false, false, []Permission{PermissionView}, "acc-1")
	require.NoError(t, err)

	require.NoError(t, catalog.DeleteForAccount(ctx, "acc-1"))

	_, err = catalog.RoleByID(ctx, saved.RoleID)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
