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

import "context"

// AclRepository defines the interface for ACL persistence. FindMatching is
// the single read path; callers express predicates as structured queries.
type AclRepository interface {
	// FindMatching retrieves every ACL satisfying the query.
	FindMatching(ctx context.Context, q Query) ([]ACL, error)

	// Get retrieves an ACL by id.
	Get(ctx context.Context, aclID string) (ACL, error)

	// Create persists a new ACL.
	Create(ctx context.Context, acl ACL) (ACL, error)

	// Update persists the replacement ACL under the given id.
	Update(ctx context.Context, aclID string, acl ACL) (ACL, error)

	// Delete removes an ACL by id.
	Delete(ctx context.Context, aclID string) error

	// DeleteMatching removes every ACL satisfying the query.
	DeleteMatching(ctx context.Context, q Query) error
}

// RoleRepository defines the interface for custom role persistence. Built-in
// roles never reach the store; the Catalog resolves them first.
type RoleRepository interface {
	// Save persists a new custom role.
	Save(ctx context.Context, role Role) (Role, error)

	// Update persists the replacement role under the given id.
	Update(ctx context.Context, roleID string, role Role) (Role, error)

	// GetByID retrieves a custom role by id.
	GetByID(ctx context.Context, roleID string) (Role, error)

	// ForAccount retrieves the custom roles of an account.
	ForAccount(ctx context.Context, accountID string) ([]Role, error)

	// Delete removes a custom role.
	Delete(ctx context.Context, roleID string) error

	// DeleteForAccount removes every custom role of an account.
	DeleteForAccount(ctx context.Context, accountID string) error
}

// AssigneeResolver expands an identity into its effective assignee set. For a
// user that is every group the user belongs to, the user itself, and PUBLIC;
// every authenticated identity also qualifies for public grants.
type AssigneeResolver interface {
	Assignees(ctx context.Context, t AssigneeType, id string, accountID string) ([]AssigneeGroup, error)
}

// ResourceResolver expands a resource id into the resource groups whose ACLs
// govern it. For documents that is the full ancestor chain up to the account
// root; other types resolve to themselves.
type ResourceResolver interface {
	Resources(ctx context.Context, t ResourceType, id string) ([]ResourceGroup, error)

	// ResourcesArray is the batched form. Each returned group carries the
	// originating id in ID and its ancestor chain in IDs, index-aligned with
	// the input.
	ResourcesArray(ctx context.Context, t ResourceType, ids []string) ([]ResourceGroup, error)
}

// GroupDirectory resolves current user-group membership. Cache invalidation
// fans out through it at invalidation time, not at grant time.
type GroupDirectory interface {
	GroupMembers(ctx context.Context, accountID, groupID string) ([]string, error)
}

// ContentService is the narrow contract to the document repository service.
type ContentService interface {
	// RootCollection returns the id of the account's root collection.
	RootCollection(ctx context.Context, accountID string) (string, error)

	// AdvertisedDocumentIDs filters the given ids down to documents shown in
	// the public overview.
	AdvertisedDocumentIDs(ctx context.Context, documentIDs []string) ([]string, error)

	// InvalidatePublicItems tells the repository service that the account's
	// set of publicly readable items may have changed.
	InvalidatePublicItems(ctx context.Context, accountID string) error

	// PublicDocumentCountChanged tells the account service that the number
	// of public documents changed.
	PublicDocumentCountChanged(ctx context.Context, accountID string) error
}

// PermissionCache is the secondary, eventually consistent store of coarse
// per-user editable-account permissions.
type PermissionCache interface {
	// AccountsForUser returns the cached entry, or an empty slice on miss.
	AccountsForUser(ctx context.Context, userID string) ([]AccountsWithPermissions, error)

	// SetAccountsForUser stores the entry with the cache's TTL.
	SetAccountsForUser(ctx context.Context, userID string, accounts []AccountsWithPermissions) error

	// Invalidate drops the entry for the user.
	Invalidate(ctx context.Context, userID string) error
}
