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
)

// ContentClient talks to the document repository service. It implements
// authz.ContentService and AncestorSource.
type ContentClient struct {
	client *Client
}

// NewContentClient creates a document repository client.
func NewContentClient(client *Client) *ContentClient {
	return &ContentClient{client: client}
}

// RootCollection implements authz.ContentService
func (c *ContentClient) RootCollection(ctx context.Context, accountID string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/accounts/%s/root-collection", url.PathEscape(accountID))
	if err := c.client.getJSON(ctx, path, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AncestorMap implements AncestorSource
func (c *ContentClient) AncestorMap(ctx context.Context, documentIDs []string) (map[string][]string, error) {
	req := struct {
		DocumentIDs []string `json:"documentIds"`
	}{DocumentIDs: documentIDs}
	ancestors := make(map[string][]string)
	if err := c.client.postJSON(ctx, "/documents/ancestors", req, &ancestors); err != nil {
		return nil, err
	}
	return ancestors, nil
}

// AdvertisedDocumentIDs implements authz.ContentService
func (c *ContentClient) AdvertisedDocumentIDs(ctx context.Context, documentIDs []string) ([]string, error) {
	req := struct {
		DocumentIDs []string `json:"documentIds"`
	}{DocumentIDs: documentIDs}
	var advertised []string
	if err := c.client.postJSON(ctx, "/documents/advertised", req, &advertised); err != nil {
		return nil, err
	}
	return advertised, nil
}

// InvalidatePublicItems implements authz.ContentService
func (c *ContentClient) InvalidatePublicItems(ctx context.Context, accountID string) error {
	path := fmt.Sprintf("/accounts/%s/public-items/invalidate", url.PathEscape(accountID))
	return c.client.postJSON(ctx, path, nil, nil)
}

// PublicDocumentCountChanged implements authz.ContentService
func (c *ContentClient) PublicDocumentCountChanged(ctx context.Context, accountID string) error {
	path := fmt.Sprintf("/accounts/%s/public-document-count/refresh", url.PathEscape(accountID))
	return c.client.postJSON(ctx, path, nil, nil)
}
