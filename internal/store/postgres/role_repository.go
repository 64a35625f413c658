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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docuflow/docuflow/internal/authz"
	"github.com/jackc/pgx/v5"
)

// RoleRepository implements authz.RoleRepository for account-scoped custom
// roles. Built-in roles never reach this table.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = "role_id, name, permissions, account_id, is_builtin, is_default, description"

// Save persists a new custom role
func (r *RoleRepository) Save(ctx context.Context, role authz.Role) (authz.Role, error) {
	if role.RoleID == "" {
		role.RoleID = authz.NewRoleID()
	}
	permissions, err := marshalPermissions(role.Permissions)
	if err != nil {
		return authz.Role{}, err
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roles (
			role_id, name, permissions, account_id, is_builtin, is_default, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		role.RoleID, role.Name, permissions, role.AccountID,
		role.IsBuiltin, role.IsDefault, role.Description,
	)
	if err != nil {
		return authz.Role{}, fmt.Errorf("failed to save role: %w", err)
	}
	return role, nil
}

// Update persists the replacement role under the given id
func (r *RoleRepository) Update(ctx context.Context, roleID string, role authz.Role) (authz.Role, error) {
	role.RoleID = roleID
	permissions, err := marshalPermissions(role.Permissions)
	if err != nil {
		return authz.Role{}, err
	}
	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET
			name = $2,
			permissions = $3,
			account_id = $4,
			is_builtin = $5,
			is_default = $6,
			description = $7
		WHERE role_id = $1
	`,
		roleID, role.Name, permissions, role.AccountID,
		role.IsBuiltin, role.IsDefault, role.Description,
	)
	if err != nil {
		return authz.Role{}, fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.Role{}, authz.ErrRoleNotFound
	}
	return role, nil
}

// GetByID retrieves a custom role by id
func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (authz.Role, error) {
	row := r.db.pool.QueryRow(ctx, "SELECT "+roleColumns+" FROM roles WHERE role_id = $1", roleID)
	role, err := scanRole(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return authz.Role{}, authz.ErrRoleNotFound
		}
		return authz.Role{}, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ForAccount retrieves the custom roles of an account
func (r *RoleRepository) ForAccount(ctx context.Context, accountID string) ([]authz.Role, error) {
	rows, err := r.db.pool.Query(ctx, "SELECT "+roleColumns+" FROM roles WHERE account_id = $1 ORDER BY name", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []authz.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Delete removes a custom role
func (r *RoleRepository) Delete(ctx context.Context, roleID string) error {
	result, err := r.db.pool.Exec(ctx, "DELETE FROM roles WHERE role_id = $1", roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// DeleteForAccount removes every custom role of an account
func (r *RoleRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	if _, err := r.db.pool.Exec(ctx, "DELETE FROM roles WHERE account_id = $1", accountID); err != nil {
		return fmt.Errorf("failed to delete roles: %w", err)
	}
	return nil
}

func scanRole(row rowScanner) (authz.Role, error) {
	var role authz.Role
	var permissions []byte
	if err := row.Scan(
		&role.RoleID, &role.Name, &permissions, &role.AccountID,
		&role.IsBuiltin, &role.IsDefault, &role.Description,
	); err != nil {
		return authz.Role{}, err
	}
	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return authz.Role{}, fmt.Errorf("failed to decode permissions of role %s: %w", role.RoleID, err)
	}
	return role, nil
}

func marshalPermissions(permissions []authz.Permission) ([]byte, error) {
	if permissions == nil {
		permissions = []authz.Permission{}
	}
	raw, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	return raw, nil
}
