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

package directory

import (
	"context"
	"fmt"
	"net/url"

	"github.com/docuflow/docuflow/internal/authz"
)

// UserDirectory is the narrow contract to the user directory service.
type UserDirectory interface {
	// GroupsForUser returns the ids of every group the user belongs to.
	GroupsForUser(ctx context.Context, accountID, userID string) ([]string, error)

	// GroupMembers returns the current member ids of a group.
	GroupMembers(ctx context.Context, accountID, groupID string) ([]string, error)
}

// AssigneeResolver expands an identity into its effective assignee set.
type AssigneeResolver struct {
	users UserDirectory
}

// NewAssigneeResolver creates an assignee resolver over the user directory.
func NewAssigneeResolver(users UserDirectory) *AssigneeResolver {
	return &AssigneeResolver{users: users}
}

// Assignees implements authz.AssigneeResolver. A user resolves to its groups,
// itself and PUBLIC; PUBLIC resolves to itself alone; every other identity
// resolves to itself plus PUBLIC, since any authenticated identity also
// qualifies for public grants.
func (r *AssigneeResolver) Assignees(ctx context.Context, t authz.AssigneeType, id string, accountID string) ([]authz.AssigneeGroup, error) {
	switch t {
	case authz.AssigneePublic:
		return []authz.AssigneeGroup{authz.PublicAssignee()}, nil
	case authz.AssigneeUser:
		groupIDs, err := r.users.GroupsForUser(ctx, accountID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user groups: %w", err)
		}
		assignees := make([]authz.AssigneeGroup, 0, len(groupIDs)+2)
		for _, groupID := range groupIDs {
			assignees = append(assignees, authz.AssigneeGroup{Type: authz.AssigneeUserGroup, IDs: []string{groupID}})
		}
		assignees = append(assignees,
			authz.AssigneeGroup{Type: authz.AssigneeUser, IDs: []string{id}},
			authz.PublicAssignee(),
		)
		return assignees, nil
	default:
		return []authz.AssigneeGroup{
			{Type: t, IDs: []string{id}},
			authz.PublicAssignee(),
		}, nil
	}
}

// UserDirectoryClient implements UserDirectory and authz.GroupDirectory over
// the user directory service's HTTP API.
type UserDirectoryClient struct {
	client *Client
}

// NewUserDirectoryClient creates a user directory client.
func NewUserDirectoryClient(client *Client) *UserDirectoryClient {
	return &UserDirectoryClient{client: client}
}

// GroupsForUser implements UserDirectory
func (c *UserDirectoryClient) GroupsForUser(ctx context.Context, accountID, userID string) ([]string, error) {
	var groups []struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/accounts/%s/users/%s/groups", url.PathEscape(accountID), url.PathEscape(userID))
	if err := c.client.getJSON(ctx, path, &groups); err != nil {
		return nil, err
	}
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids, nil
}

// GroupMembers implements UserDirectory and authz.GroupDirectory
func (c *UserDirectoryClient) GroupMembers(ctx context.Context, accountID, groupID string) ([]string, error) {
	var members []struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/accounts/%s/groups/%s/members", url.PathEscape(accountID), url.PathEscape(groupID))
	if err := c.client.getJSON(ctx, path, &members); err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids, nil
}
