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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/docuflow/internal/authz"
)

type staticAncestors map[string][]string

func (s staticAncestors) AncestorMap(ctx context.Context, documentIDs []string) (map[string][]string, error) {
	return s, nil
}

func TestAncestorClosure(t *testing.T) {
	ancestors := map[string][]string{
		"doc-1": {"col-1"},
		"col-1": {"root-1"},
		"root-1": {},
	}
	assert.Equal(t, []string{"doc-1", "col-1", "root-1"}, AncestorClosure("doc-1", ancestors))
}

func TestAncestorClosureRootOnly(t *testing.T) {
	assert.Equal(t, []string{"root-1"}, AncestorClosure("root-1", map[string][]string{}))
}

func TestAncestorClosureMultipleParents(t *testing.T) {
	// A document linked into two collections carries both chains.
	ancestors := map[string][]string{
		"doc-1": {"col-a", "col-b"},
		"col-a": {"root-1"},
		"col-b": {"root-1"},
	}
	assert.Equal(t, []string{"doc-1", "col-a", "col-b", "root-1"}, AncestorClosure("doc-1", ancestors))
}

func TestAncestorClosureTerminatesOnCycle(t *testing.T) {
	ancestors := map[string][]string{
		"doc-1": {"col-1"},
		"col-1": {"doc-1"},
	}
	assert.Equal(t, []string{"doc-1", "col-1"}, AncestorClosure("doc-1", ancestors))
}

func TestResourcesArrayDocuments(t *testing.T) {
	resolver := NewResourceResolver(staticAncestors{
		"doc-1": {"root-1"},
	})

	groups, err := resolver.ResourcesArray(context.Background(), authz.ResourceDocument, []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "doc-1", groups[0].ID)
	assert.Equal(t, []string{"doc-1", "root-1"}, groups[0].IDs)

	// Unknown ids resolve to themselves.
	assert.Equal(t, "doc-2", groups[1].ID)
	assert.Equal(t, []string{"doc-2"}, groups[1].IDs)
}

func TestResourcesArrayNonDocumentTypesResolveToSelf(t *testing.T) {
	resolver := NewResourceResolver(staticAncestors{})

	groups, err := resolver.ResourcesArray(context.Background(), authz.ResourceAccount, []string{"acc-1"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"acc-1"}, groups[0].IDs)
	assert.Equal(t, "acc-1", groups[0].ID)
}

func TestResources(t *testing.T) {
	resolver := NewResourceResolver(staticAncestors{
		"doc-1": {"root-1"},
	})

	groups, err := resolver.Resources(context.Background(), authz.ResourceDocument, "doc-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"doc-1", "root-1"}, groups[0].IDs)
}
