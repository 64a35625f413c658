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
)

// Catalog resolves roles: built-ins from the injected registry, custom roles
// from the store.
type Catalog struct {
	builtins BuiltinRoles
	repo     RoleRepository
}

// NewCatalog creates a role catalog.
func NewCatalog(builtins BuiltinRoles, repo RoleRepository) *Catalog {
	return &Catalog{builtins: builtins, repo: repo}
}

// Builtins returns the injected built-in role registry.
func (c *Catalog) Builtins() BuiltinRoles {
	return c.builtins
}

// RoleByID resolves a role by id, checking built-ins before the store.
func (c *Catalog) RoleByID(ctx context.Context, roleID string) (Role, error) {
	if role, ok := c.builtins.ByID(roleID); ok {
		return role, nil
	}
	role, err := c.repo.GetByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// AllForAccount returns the account's custom roles plus every built-in role.
func (c *Catalog) AllForAccount(ctx context.Context, accountID string) ([]Role, error) {
	custom, err := c.repo.ForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom roles: %w", err)
	}
	return append(custom, c.builtins.All()...), nil
}

// DefaultRole returns the account's default custom role, falling back to the
// global default (Reader) when no custom role is flagged.
func (c *Catalog) DefaultRole(ctx context.Context, accountID string) (Role, error) {
	custom, err := c.repo.ForAccount(ctx, accountID)
	if err != nil {
		return Role{}, fmt.Errorf("failed to load custom roles: %w", err)
	}
	for _, role := range custom {
		if role.IsDefault {
			return role, nil
		}
	}
	for _, role := range c.builtins.All() {
		if role.IsDefault {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

// SaveRole persists a new account-scoped custom role.
func (c *Catalog) SaveRole(ctx context.Context, name string, isBuiltin, isDefault bool, permissions []Permission, accountID string) (Role, error) {
	role := Role{
		RoleID:      NewRoleID(),
		Name:        name,
		Permissions: permissions,
		AccountID:   accountID,
		IsBuiltin:   isBuiltin,
		IsDefault:   isDefault,
	}
	return c.repo.Save(ctx, role)
}

// AddPermissionToRole rebuilds the role with the extra permissions and
// persists the replacement.
func (c *Catalog) AddPermissionToRole(ctx context.Context, roleID string, permissions []Permission) (Role, error) {
	role, err := c.RoleByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	return c.repo.Update(ctx, roleID, role.AddPermission(permissions))
}

// RemovePermissionFromRole rebuilds the role without the permissions and
// persists the replacement.
func (c *Catalog) RemovePermissionFromRole(ctx context.Context, roleID string, permissions []Permission) (Role, error) {
	role, err := c.RoleByID(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	return c.repo.Update(ctx, roleID, role.RemovePermission(permissions))
}

// DeleteForAccount removes every custom role of the account.
func (c *Catalog) DeleteForAccount(ctx context.Context, accountID string) error {
	return c.repo.DeleteForAccount(ctx, accountID)
}
