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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/docuflow/docuflow/internal/authz"
	"github.com/docuflow/docuflow/internal/observability/logger"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	authzService *authz.Service
	backendKey   string
}

// NewHandler creates a new HTTP handler
func NewHandler(authzService *authz.Service, backendKey string) *Handler {
	return &Handler{
		authzService: authzService,
		backendKey:   backendKey,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.CallerMiddleware)

		// Permission queries
		r.Post("/permissions/resource", h.FindResourcePermissions)
		r.Post("/permissions/resource-restrictions", h.FindResourcePermissionsWithRestrictions)
		r.Post("/permissions/resources", h.FindMultipleResourcesPermissions)
		r.Post("/permissions/public", h.FindPublicPermissions)
		r.Post("/resource-groups/allowed", h.FindAllowedResourceGroups)
		r.Post("/resource-groups/public", h.FindPublicResourceGroups)
		r.Post("/resource-groups/mine", h.FindMyResourceGroups)
		r.Post("/resource-acls", h.ResourceAcls)

		// ACL management
		r.With(RequireUser).Post("/acls", h.CreateAcl)
		r.Get("/acls/{aclID}", h.LoadAcl)
		r.With(RequireUser).Put("/acls/{aclID}", h.UpdateAcl)
		r.With(RequireUser).Delete("/acls/{aclID}", h.DeleteAcl)
		r.With(RequireUser).Post("/acls/{aclID}/assignees", h.AddAclAssignee)
		r.With(RequireUser).Put("/acls/{aclID}/assignees", h.UpdateAclAssignee)
		r.With(RequireUser).Delete("/acls/{aclID}/assignees", h.RemoveAclAssignee)
		r.With(RequireUser).Post("/acls/duplicate", h.DuplicateResourceAcls)
		r.With(RequireUser).Post("/documents/acl", h.AddDocumentAcl)
		r.With(RequireUser).Delete("/resources/{resourceID}", h.RemoveResourceFromAcls)

		// Account management
		r.With(RequireUser).Post("/accounts/{accountID}/bootstrap", h.CreateDefaultAccountRoles)
		r.Get("/accounts/{accountID}/acls", h.AccountAcls)
		r.Get("/accounts/{accountID}/resource-acls", h.AllResourceAcls)
		r.Get("/accounts/{accountID}/resource-ids", h.AllResourceIdsForAccounts)
		r.Post("/accounts/{accountID}/contains-public-acl", h.ContainsPublicAcl)
		r.Get("/accounts/{accountID}/admins", h.GetAccountAdmins)
		r.Get("/accounts/{accountID}/admin-group", h.GetAdminGroup)
		r.With(RequireUser).Post("/accounts/{accountID}/admins", h.AddAccountAdmin)
		r.With(RequireUser).Delete("/accounts/{accountID}/admins/{userID}", h.RemoveAccountAdmin)
		r.With(RequireUser).Post("/accounts/{accountID}/members", h.AddUserToAccount)
		r.With(RequireUser).Delete("/accounts/{accountID}/members/{userID}", h.RemoveUserFromAccount)
		r.With(RequireUser).Delete("/accounts/{accountID}/groups/{groupID}", h.RemoveUsergroupFromAccount)
		r.With(RequireUser).Delete("/accounts/{accountID}", h.DeleteAllForAccount)

		// Public read access
		r.With(RequireUser).Post("/accounts/{accountID}/documents/{documentID}/public-read", h.GrantPublicReadAccess)
		r.With(RequireUser).Delete("/accounts/{accountID}/documents/{documentID}/public-read", h.RevokePublicReadAccess)

		// Roles
		r.Get("/accounts/{accountID}/roles", h.AccountRoles)
		r.With(RequireUser).Post("/roles", h.SaveRole)

		// Editor accounts and cache maintenance
		r.Get("/users/{userID}/editor-accounts", h.AccountsForEditor)
		r.Post("/users/{userID}/has-editor-account", h.HasAvailableEditorAccount)
		r.Post("/accounts/{accountID}/document-acls", h.UserDocumentsAcls)
		r.With(RequireUser).Post("/cache/group-member-removal", h.HandleCacheOnGroupMemberRemoval)
	})

	return r
}

// HealthCheck reports service liveness
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FindResourcePermissions returns the permissions a user holds on a resource
func (h *Handler) FindResourcePermissions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string             `json:"userId"`
		ResourceType authz.ResourceType `json:"resourceType"`
		ResourceID   string             `json:"resourceId"`
		AccountID    string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	permissions, err := h.authzService.FindResourcePermissions(r.Context(), req.UserID, req.ResourceType, req.ResourceID, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, permissionList(permissions))
}

// FindResourcePermissionsWithRestrictions returns permissions grouped by
// restriction set
func (h *Handler) FindResourcePermissionsWithRestrictions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string             `json:"userId"`
		ResourceType authz.ResourceType `json:"resourceType"`
		ResourceID   string             `json:"resourceId"`
		AccountID    string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.authzService.FindResourcePermissionsWithRestrictions(r.Context(), req.UserID, req.ResourceType, req.ResourceID, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// FindMultipleResourcesPermissions resolves permissions for a batch of
// resources
func (h *Handler) FindMultipleResourcesPermissions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string             `json:"userId"`
		ResourceType authz.ResourceType `json:"resourceType"`
		ResourceIDs  []string           `json:"resourceIds"`
		AccountID    string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.authzService.FindMultipleResourcesPermissions(r.Context(), req.UserID, req.ResourceType, req.ResourceIDs, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// FindPublicPermissions returns the permissions granted to anyone
func (h *Handler) FindPublicPermissions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceType authz.ResourceType `json:"resourceType"`
		ResourceID   string             `json:"resourceId"`
		AccountID    string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	permissions, err := h.authzService.FindPublicPermissions(r.Context(), req.ResourceType, req.ResourceID, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, permissionList(permissions))
}

// FindAllowedResourceGroups answers what the user can do
func (h *Handler) FindAllowedResourceGroups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string             `json:"userId"`
		ResourceType authz.ResourceType `json:"resourceType"`
		Permission   authz.Permission   `json:"permission"`
		SkipPublic   bool               `json:"skipPublic"`
		AccountID    string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	groups, err := h.authzService.FindAllowedResourceGroups(r.Context(), req.UserID, req.ResourceType, req.Permission, req.SkipPublic, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// FindPublicResourceGroups answers what anyone can do
func (h *Handler) FindPublicResourceGroups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceType   authz.ResourceType `json:"resourceType"`
		Permission     authz.Permission   `json:"permission"`
		AccountIDs     []string           `json:"accountIds"`
		AdvertisedOnly bool               `json:"advertisedOnly"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	groups, err := h.authzService.FindPublicResourceGroups(r.Context(), req.ResourceType, req.Permission, req.AccountIDs, req.AdvertisedOnly)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// FindMyResourceGroups unions resource groups per permission across accounts
func (h *Handler) FindMyResourceGroups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountIDs     []string           `json:"accountIds"`
		ResourceType   authz.ResourceType `json:"resourceType"`
		Permissions    []authz.Permission `json:"permissions"`
		AdvertisedOnly bool               `json:"advertisedOnly"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	filter := authz.PublicItemsAll
	if req.AdvertisedOnly {
		filter = authz.PublicItemsAdvertisedOnly
	}
	result, err := h.authzService.FindMyResourceGroups(r.Context(), req.AccountIDs, req.ResourceType, req.Permissions, filter, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ResourceAcls returns the ACLs governing each resource in the group
func (h *Handler) ResourceAcls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceGroup authz.ResourceGroup `json:"resourceGroup"`
		AccountID     string              `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	result, err := h.authzService.ResourceAcls(ctx, req.ResourceGroup, req.AccountID, GetActorID(ctx), IsBackend(ctx))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateAcl persists a caller-assembled ACL
func (h *Handler) CreateAcl(w http.ResponseWriter, r *http.Request) {
	var acl authz.ACL
	if !decodeBody(w, r, &acl) {
		return
	}
	created, err := h.authzService.CreateAcl(r.Context(), acl, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// LoadAcl retrieves an ACL by id
func (h *Handler) LoadAcl(w http.ResponseWriter, r *http.Request) {
	acl, err := h.authzService.LoadAcl(r.Context(), chi.URLParam(r, "aclID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acl)
}

// UpdateAcl persists a replacement ACL
func (h *Handler) UpdateAcl(w http.ResponseWriter, r *http.Request) {
	var acl authz.ACL
	if !decodeBody(w, r, &acl) {
		return
	}
	updated, err := h.authzService.UpdateAcl(r.Context(), chi.URLParam(r, "aclID"), acl, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteAcl removes an ACL
func (h *Handler) DeleteAcl(w http.ResponseWriter, r *http.Request) {
	if err := h.authzService.DeleteAcl(r.Context(), chi.URLParam(r, "aclID"), GetActorID(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assigneeRequest struct {
	AssigneeType authz.AssigneeType `json:"assigneeType"`
	AssigneeID   string             `json:"assigneeId"`
	FromID       string             `json:"fromId"`
	ToID         string             `json:"toId"`
}

// AddAclAssignee adds an identity to an ACL
func (h *Handler) AddAclAssignee(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.authzService.AddAclAssignee(r.Context(), chi.URLParam(r, "aclID"), req.AssigneeType, req.AssigneeID, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// RemoveAclAssignee removes an identity from an ACL
func (h *Handler) RemoveAclAssignee(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.authzService.RemoveAclAssignee(r.Context(), chi.URLParam(r, "aclID"), req.AssigneeType, req.AssigneeID, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// UpdateAclAssignee replaces one assignee id with another
func (h *Handler) UpdateAclAssignee(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.authzService.UpdateAclAssignee(r.Context(), chi.URLParam(r, "aclID"), req.AssigneeType, req.FromID, req.ToID, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DuplicateResourceAcls copies access control to duplicated resources
func (h *Handler) DuplicateResourceAcls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pairs        []authz.ResourcePair `json:"pairs"`
		ResourceType authz.ResourceType   `json:"resourceType"`
		AccountID    string               `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.authzService.DuplicateResourceAcls(r.Context(), req.Pairs, req.ResourceType, req.AccountID, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// AddDocumentAcl grants an assignee a role on a document
func (h *Handler) AddDocumentAcl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID    string                `json:"accountId"`
		DocumentID   string                `json:"documentId"`
		RoleID       string                `json:"roleId"`
		AssigneeType authz.AssigneeType    `json:"assigneeType"`
		AssigneeID   string                `json:"assigneeId"`
		Restrictions *authz.RestrictionSet `json:"restrictionSet,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	acl, err := h.authzService.AddDocumentAcl(r.Context(), req.AccountID, req.DocumentID, req.RoleID, req.AssigneeType, req.AssigneeID, req.Restrictions, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acl)
}

// RemoveResourceFromAcls strips a deleted resource from every ACL
func (h *Handler) RemoveResourceFromAcls(w http.ResponseWriter, r *http.Request) {
	if err := h.authzService.RemoveResourceFromAcls(r.Context(), chi.URLParam(r, "resourceID")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDefaultAccountRoles bootstraps a fresh account
func (h *Handler) CreateDefaultAccountRoles(w http.ResponseWriter, r *http.Request) {
	created, err := h.authzService.CreateDefaultAccountRoles(r.Context(), chi.URLParam(r, "accountID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"created": len(created)})
}

// AccountAcls lists every ACL of an account
func (h *Handler) AccountAcls(w http.ResponseWriter, r *http.Request) {
	acls, err := h.authzService.AccountAcls(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acls)
}

// AllResourceAcls lists every document-level ACL of an account
func (h *Handler) AllResourceAcls(w http.ResponseWriter, r *http.Request) {
	acls, err := h.authzService.AllResourceAcls(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acls)
}

// AllResourceIdsForAccounts lists every document id under access control
func (h *Handler) AllResourceIdsForAccounts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.authzService.AllResourceIdsForAccounts(r.Context(), []string{chi.URLParam(r, "accountID")})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

// ContainsPublicAcl reports whether any of the documents is publicly readable
func (h *Handler) ContainsPublicAcl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentIDs []string `json:"documentIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	contains, err := h.authzService.ContainsPublicAcl(r.Context(), chi.URLParam(r, "accountID"), req.DocumentIDs)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"containsPublicAcl": contains})
}

// GetAccountAdmins lists the account's admin user ids
func (h *Handler) GetAccountAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.authzService.GetAccountAdmins(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, admins)
}

// GetAdminGroup returns the account's admin group, if any
func (h *Handler) GetAdminGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := h.authzService.GetAdminGroup(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"groupId": groupID})
}

// AddAccountAdmin grants a user or group account administration
func (h *Handler) AddAccountAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	accountID := chi.URLParam(r, "accountID")
	actorID := GetActorID(r.Context())
	var err error
	switch {
	case req.UserID != "":
		err = h.authzService.AddAccountAdmin(r.Context(), accountID, req.UserID, actorID)
	case req.GroupID != "":
		err = h.authzService.AddAccountAdminUserGroup(r.Context(), accountID, req.GroupID, actorID)
	default:
		respondError(w, http.StatusBadRequest, "userId or groupId is required")
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveAccountAdmin revokes a user's account administration
func (h *Handler) RemoveAccountAdmin(w http.ResponseWriter, r *http.Request) {
	err := h.authzService.RemoveAccountAdmin(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "userID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddUserToAccount grants a new member the account's default role
func (h *Handler) AddUserToAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	acl, err := h.authzService.AddUserToAccount(r.Context(), chi.URLParam(r, "accountID"), req.UserID, GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acl)
}

// RemoveUserFromAccount removes a user from every ACL of the account
func (h *Handler) RemoveUserFromAccount(w http.ResponseWriter, r *http.Request) {
	err := h.authzService.RemoveUserFromAccount(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "userID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveUsergroupFromAccount removes a group from every ACL of the account
func (h *Handler) RemoveUsergroupFromAccount(w http.ResponseWriter, r *http.Request) {
	err := h.authzService.RemoveUsergroupFromAccount(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "groupID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllForAccount purges the account's access control
func (h *Handler) DeleteAllForAccount(w http.ResponseWriter, r *http.Request) {
	err := h.authzService.DeleteAllForAccount(r.Context(), chi.URLParam(r, "accountID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantPublicReadAccess makes a document readable by anyone
func (h *Handler) GrantPublicReadAccess(w http.ResponseWriter, r *http.Request) {
	acl, err := h.authzService.GrantPublicReadAccess(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "documentID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acl)
}

// RevokePublicReadAccess withdraws a document's public readability
func (h *Handler) RevokePublicReadAccess(w http.ResponseWriter, r *http.Request) {
	acl, err := h.authzService.RevokePublicReadAccess(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "documentID"), GetActorID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acl)
}

// AccountRoles lists an account's roles, custom and built-in
func (h *Handler) AccountRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.authzService.Roles().AllForAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

// SaveRole persists a custom role
func (h *Handler) SaveRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string             `json:"name"`
		IsDefault   bool               `json:"isDefault"`
		Permissions []authz.Permission `json:"permissions"`
		AccountID   string             `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	role, err := h.authzService.Roles().SaveRole(r.Context(), req.Name, false, req.IsDefault, req.Permissions, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, role)
}

// AccountsForEditor returns the accounts the user can edit
func (h *Handler) AccountsForEditor(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.authzService.AccountsForEditor(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// HasAvailableEditorAccount reports whether the user can edit any account
func (h *Handler) HasAvailableEditorAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountIDs []string `json:"accountIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	has, err := h.authzService.HasAvailableEditorAccount(r.Context(), req.AccountIDs, chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"hasAvailableEditorAccount": has})
}

// UserDocumentsAcls lists the document grants held by a user and its groups
func (h *Handler) UserDocumentsAcls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAndGroupIDs []string `json:"userAndGroupIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.UserAndGroupIDs) == 0 {
		respondError(w, http.StatusBadRequest, "userAndGroupIds is required")
		return
	}
	result, err := h.authzService.UserDocumentsAcls(r.Context(), req.UserAndGroupIDs, chi.URLParam(r, "accountID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleCacheOnGroupMemberRemoval invalidates removed members' cache entries
func (h *Handler) HandleCacheOnGroupMemberRemoval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID  string   `json:"accountId"`
		GroupID    string   `json:"groupId"`
		MemberIDs  []string `json:"memberIds"`
		ForceFlush bool     `json:"forceFlush"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.authzService.HandleCacheOnGroupMemberRemoval(r.Context(), req.AccountID, req.GroupID, req.MemberIDs, req.ForceFlush)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// permissionList renders nil slices as empty JSON arrays.
func permissionList(permissions []authz.Permission) []authz.Permission {
	if permissions == nil {
		return []authz.Permission{}
	}
	return permissions
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrAclNotFound),
		errors.Is(err, authz.ErrRoleNotFound),
		errors.Is(err, authz.ErrAdminAclNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrMissingAccountID),
		errors.Is(err, authz.ErrUnknownUser):
		respondError(w, http.StatusBadRequest, err.Error())
	case authz.IsInvariantError(err):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case authz.IsIntegrityError(err):
		slog.ErrorContext(r.Context(), "data integrity violation", logger.Error(err))
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", logger.Error(err), logger.Path(r.URL.Path))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
