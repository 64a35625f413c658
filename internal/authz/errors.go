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
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrAclNotFound      = errors.New("acl not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrAdminAclNotFound = errors.New("admin acl not found")
	ErrUnknownUser      = errors.New("unknown user")
	ErrMissingAccountID = errors.New("account id is required")
)

// IntegrityError marks a state the data model forbids, found at read time.
// It is never resolved by picking a candidate; the operation fails.
type IntegrityError struct {
	Reason string
	AclIDs []string
}

func (e *IntegrityError) Error() string {
	if len(e.AclIDs) == 0 {
		return fmt.Sprintf("integrity violation: %s", e.Reason)
	}
	return fmt.Sprintf("integrity violation: %s: %s", e.Reason, strings.Join(e.AclIDs, ", "))
}

// InvariantError rejects a mutation before any store write happens.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// IsIntegrityError reports whether err is an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsInvariantError reports whether err is an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
