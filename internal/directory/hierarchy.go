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

	"github.com/docuflow/docuflow/internal/authz"
)

// AncestorSource supplies the immediate-ancestor relation of the document
// hierarchy.
type AncestorSource interface {
	// AncestorMap returns, for every id reachable upward from the given ids,
	// its immediate ancestor ids. Roots map to an empty list.
	AncestorMap(ctx context.Context, documentIDs []string) (map[string][]string, error)
}

// ResourceResolver expands resource ids into the resource groups whose ACLs
// govern them. Documents expand to their full ancestor chain; other types
// resolve to themselves.
type ResourceResolver struct {
	ancestors AncestorSource
}

// NewResourceResolver creates a hierarchy resolver over the ancestor source.
func NewResourceResolver(ancestors AncestorSource) *ResourceResolver {
	return &ResourceResolver{ancestors: ancestors}
}

// Resources implements authz.ResourceResolver
func (r *ResourceResolver) Resources(ctx context.Context, t authz.ResourceType, id string) ([]authz.ResourceGroup, error) {
	groups, err := r.ResourcesArray(ctx, t, []string{id})
	if err != nil {
		return nil, err
	}
	out := make([]authz.ResourceGroup, len(groups))
	for i, g := range groups {
		out[i] = g
	}
	return out, nil
}

// ResourcesArray implements authz.ResourceResolver. Each returned group
// carries the originating id in ID and its ancestor chain in IDs,
// index-aligned with the input.
func (r *ResourceResolver) ResourcesArray(ctx context.Context, t authz.ResourceType, ids []string) ([]authz.ResourceGroup, error) {
	if t != authz.ResourceDocument {
		out := make([]authz.ResourceGroup, len(ids))
		for i, id := range ids {
			out[i] = authz.ResourceGroup{Type: t, IDs: []string{id}, ID: id}
		}
		return out, nil
	}
	ancestors, err := r.ancestors.AncestorMap(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ancestor map: %w", err)
	}
	out := make([]authz.ResourceGroup, len(ids))
	for i, id := range ids {
		out[i] = authz.ResourceGroup{
			Type: authz.ResourceDocument,
			IDs:  AncestorClosure(id, ancestors),
			ID:   id,
		}
	}
	return out, nil
}

// AncestorClosure computes the transitive ancestor closure of the id over an
// immediate-ancestor map: the id itself plus every enclosing collection up to
// the root, in breadth-first order. Visited ids are expanded once, so the
// walk terminates even on a cyclic input.
func AncestorClosure(id string, ancestors map[string][]string) []string {
	visited := map[string]bool{id: true}
	closure := []string{id}
	frontier := []string{id}
	for len(frontier) > 0 {
		var next []string
		for _, current := range frontier {
			for _, parent := range ancestors[current] {
				if visited[parent] {
					continue
				}
				visited[parent] = true
				closure = append(closure, parent)
				next = append(next, parent)
			}
		}
		frontier = next
	}
	return closure
}
