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
	"sync"
	"time"
)

// MemoryAclRepository is an in-memory AclRepository. It evaluates queries with
// the reference matcher and is used by tests and operational scripts.
type MemoryAclRepository struct {
	mu    sync.RWMutex
	acls  map[string]ACL
	order []string
}

// NewMemoryAclRepository creates an empty in-memory ACL store.
func NewMemoryAclRepository() *MemoryAclRepository {
	return &MemoryAclRepository{acls: make(map[string]ACL)}
}

// FindMatching implements AclRepository
func (r *MemoryAclRepository) FindMatching(ctx context.Context, q Query) ([]ACL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ACL
	for _, id := range r.order {
		if acl, ok := r.acls[id]; ok && q.Matches(acl) {
			out = append(out, acl)
		}
	}
	return out, nil
}

// Get implements AclRepository
func (r *MemoryAclRepository) Get(ctx context.Context, aclID string) (ACL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acl, ok := r.acls[aclID]
	if !ok {
		return ACL{}, ErrAclNotFound
	}
	return acl, nil
}

// Create implements AclRepository
func (r *MemoryAclRepository) Create(ctx context.Context, acl ACL) (ACL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acl.ID == "" {
		acl.ID = NewAclID()
	}
	now := time.Now()
	acl.CreatedOn = now
	acl.UpdatedOn = now
	if _, exists := r.acls[acl.ID]; !exists {
		r.order = append(r.order, acl.ID)
	}
	r.acls[acl.ID] = acl
	return acl, nil
}

// Update implements AclRepository
func (r *MemoryAclRepository) Update(ctx context.Context, aclID string, acl ACL) (ACL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.acls[aclID]
	if !ok {
		return ACL{}, ErrAclNotFound
	}
	acl.ID = aclID
	acl.CreatedOn = existing.CreatedOn
	acl.UpdatedOn = time.Now()
	r.acls[aclID] = acl
	return acl, nil
}

// Delete implements AclRepository
func (r *MemoryAclRepository) Delete(ctx context.Context, aclID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.acls[aclID]; !ok {
		return ErrAclNotFound
	}
	delete(r.acls, aclID)
	for i, id := range r.order {
		if id == aclID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteMatching implements AclRepository
func (r *MemoryAclRepository) DeleteMatching(ctx context.Context, q Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, id := range r.order {
		if acl, ok := r.acls[id]; ok && q.Matches(acl) {
			delete(r.acls, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return nil
}

// MemoryRoleRepository is an in-memory RoleRepository for tests and
// operational scripts.
type MemoryRoleRepository struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewMemoryRoleRepository creates an empty in-memory role store.
func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: make(map[string]Role)}
}

// Save implements RoleRepository
func (r *MemoryRoleRepository) Save(ctx context.Context, role Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role.RoleID == "" {
		role.RoleID = NewRoleID()
	}
	r.roles[role.RoleID] = role
	return role, nil
}

// Update implements RoleRepository
func (r *MemoryRoleRepository) Update(ctx context.Context, roleID string, role Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return Role{}, ErrRoleNotFound
	}
	role.RoleID = roleID
	r.roles[roleID] = role
	return role, nil
}

// GetByID implements RoleRepository
func (r *MemoryRoleRepository) GetByID(ctx context.Context, roleID string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[roleID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// ForAccount implements RoleRepository
func (r *MemoryRoleRepository) ForAccount(ctx context.Context, accountID string) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Role
	for _, role := range r.roles {
		if role.AccountID == accountID {
			out = append(out, role)
		}
	}
	return out, nil
}

// Delete implements RoleRepository
func (r *MemoryRoleRepository) Delete(ctx context.Context, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	delete(r.roles, roleID)
	return nil
}

// DeleteForAccount implements RoleRepository
func (r *MemoryRoleRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, role := range r.roles {
		if role.AccountID == accountID {
			delete(r.roles, id)
		}
	}
	return nil
}
