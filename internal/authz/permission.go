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

// Permission is a named capability on a resource. The integer values are
// persisted in ACL rules and must remain stable.
type Permission int

const (
	PermissionEdit    Permission = 0
	PermissionView    Permission = 1
	PermissionDelete  Permission = 2
	PermissionCreate  Permission = 3
	PermissionPublish Permission = 4
	PermissionAdmin   Permission = 5
	PermissionReview  Permission = 6
)

// AllPermissions lists every persisted permission value.
var AllPermissions = []Permission{
	PermissionEdit,
	PermissionView,
	PermissionDelete,
	PermissionCreate,
	PermissionPublish,
	PermissionAdmin,
	PermissionReview,
}

var permissionNames = map[Permission]string{
	PermissionEdit:    "EDIT",
	PermissionView:    "VIEW",
	PermissionDelete:  "DELETE",
	PermissionCreate:  "CREATE",
	PermissionPublish: "PUBLISH",
	PermissionAdmin:   "ADMIN",
	PermissionReview:  "REVIEW",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether p is one of the persisted permission values.
func (p Permission) Valid() bool {
	_, ok := permissionNames[p]
	return ok
}

// permissionScores ranks permissions for "maximum permission" comparisons.
// CREATE and DELETE never participate in ranking and score zero.
var permissionScores = map[Permission]int{
	PermissionView:    10,
	PermissionReview:  20,
	PermissionEdit:    30,
	PermissionPublish: 40,
	PermissionAdmin:   50,
}

// Score returns the fixed rank of a permission. Higher means more powerful.
func (p Permission) Score() int {
	return permissionScores[p]
}

// permissionLattice maps each permission to the full set it implies. Holding
// the key grants every listed permission. The sets are materialized into ACL
// rules at write time; read paths never re-apply this table.
var permissionLattice = map[Permission][]Permission{
	PermissionAdmin:   {PermissionAdmin, PermissionPublish, PermissionEdit, PermissionView, PermissionReview},
	PermissionPublish: {PermissionPublish, PermissionEdit, PermissionView, PermissionReview},
	PermissionReview:  {PermissionReview, PermissionEdit, PermissionView},
	PermissionEdit:    {PermissionEdit, PermissionView},
	PermissionView:    {PermissionView},
}

// Inherited returns the permissions implied by holding p, always including p
// itself. Permissions outside the lattice (CREATE, DELETE) imply only
// themselves.
func (p Permission) Inherited() []Permission {
	implied, ok := permissionLattice[p]
	if !ok {
		return []Permission{p}
	}
	out := make([]Permission, len(implied))
	copy(out, implied)
	return out
}
