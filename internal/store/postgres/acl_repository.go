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
	"sort"
	"strings"
	"time"

	"github.com/docuflow/docuflow/internal/authz"
	"github.com/jackc/pgx/v5"
)

// AclRepository implements authz.AclRepository
type AclRepository struct {
	db *DB
}

// NewAclRepository creates a new ACL repository
func NewAclRepository(db *DB) *AclRepository {
	return &AclRepository{db: db}
}

const aclColumns = "acl_id, name, description, account_id, role_id, assignees, rules, restriction_set, created_on, updated_on"

// FindMatching translates the structured query to SQL over the JSONB assignee
// and rule columns. The predicate semantics mirror authz.Query.Matches; query
// values only ever reach the database as bound parameters.
func (r *AclRepository) FindMatching(ctx context.Context, q authz.Query) ([]authz.ACL, error) {
	where, args := buildAclPredicate(q)
	sql := "SELECT " + aclColumns + " FROM acls"
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " ORDER BY created_on, acl_id"

	rows, err := r.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query acls: %w", err)
	}
	defer rows.Close()

	var acls []authz.ACL
	for rows.Next() {
		acl, err := scanAcl(rows)
		if err != nil {
			return nil, err
		}
		acls = append(acls, acl)
	}
	return acls, rows.Err()
}

// Get retrieves an ACL by id
func (r *AclRepository) Get(ctx context.Context, aclID string) (authz.ACL, error) {
	row := r.db.pool.QueryRow(ctx, "SELECT "+aclColumns+" FROM acls WHERE acl_id = $1", aclID)
	acl, err := scanAcl(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return authz.ACL{}, authz.ErrAclNotFound
		}
		return authz.ACL{}, fmt.Errorf("failed to get acl: %w", err)
	}
	return acl, nil
}

// Create persists a new ACL
func (r *AclRepository) Create(ctx context.Context, acl authz.ACL) (authz.ACL, error) {
	if acl.ID == "" {
		acl.ID = authz.NewAclID()
	}
	now := time.Now()
	acl.CreatedOn = now
	acl.UpdatedOn = now

	assignees, rules, restrictions, err := marshalAclColumns(acl)
	if err != nil {
		return authz.ACL{}, err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO acls (
			acl_id, name, description, account_id, role_id, assignees, rules, restriction_set, created_on, updated_on
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		acl.ID, acl.Name, acl.Description, acl.AccountID, acl.RoleID,
		assignees, rules, restrictions, acl.CreatedOn, acl.UpdatedOn,
	)
	if err != nil {
		return authz.ACL{}, fmt.Errorf("failed to create acl: %w", err)
	}
	return acl, nil
}

// Update persists the replacement ACL under the given id
func (r *AclRepository) Update(ctx context.Context, aclID string, acl authz.ACL) (authz.ACL, error) {
	acl.ID = aclID
	acl.UpdatedOn = time.Now()

	assignees, rules, restrictions, err := marshalAclColumns(acl)
	if err != nil {
		return authz.ACL{}, err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE acls SET
			name = $2,
			description = $3,
			account_id = $4,
			role_id = $5,
			assignees = $6,
			rules = $7,
			restriction_set = $8,
			updated_on = $9
		WHERE acl_id = $1
	`,
		aclID, acl.Name, acl.Description, acl.AccountID, acl.RoleID,
		assignees, rules, restrictions, acl.UpdatedOn,
	)
	if err != nil {
		return authz.ACL{}, fmt.Errorf("failed to update acl: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ACL{}, authz.ErrAclNotFound
	}
	return acl, nil
}

// Delete removes an ACL by id
func (r *AclRepository) Delete(ctx context.Context, aclID string) error {
	result, err := r.db.pool.Exec(ctx, "DELETE FROM acls WHERE acl_id = $1", aclID)
	if err != nil {
		return fmt.Errorf("failed to delete acl: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrAclNotFound
	}
	return nil
}

// DeleteMatching removes every ACL satisfying the query
func (r *AclRepository) DeleteMatching(ctx context.Context, q authz.Query) error {
	where, args := buildAclPredicate(q)
	sql := "DELETE FROM acls"
	if where != "" {
		sql += " WHERE " + where
	}
	if _, err := r.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete acls: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAcl(row rowScanner) (authz.ACL, error) {
	var acl authz.ACL
	var assignees, rules []byte
	var restrictions []byte

	if err := row.Scan(
		&acl.ID, &acl.Name, &acl.Description, &acl.AccountID, &acl.RoleID,
		&assignees, &rules, &restrictions, &acl.CreatedOn, &acl.UpdatedOn,
	); err != nil {
		return authz.ACL{}, err
	}
	if err := json.Unmarshal(assignees, &acl.Assignees); err != nil {
		return authz.ACL{}, fmt.Errorf("failed to decode assignees of acl %s: %w", acl.ID, err)
	}
	if err := json.Unmarshal(rules, &acl.Rules); err != nil {
		return authz.ACL{}, fmt.Errorf("failed to decode rules of acl %s: %w", acl.ID, err)
	}
	if len(restrictions) > 0 {
		var rs authz.RestrictionSet
		if err := json.Unmarshal(restrictions, &rs); err != nil {
			return authz.ACL{}, fmt.Errorf("failed to decode restriction set of acl %s: %w", acl.ID, err)
		}
		acl.RestrictionSet = &rs
	}
	return acl, nil
}

func marshalAclColumns(acl authz.ACL) (assignees, rules, restrictions []byte, err error) {
	if acl.Assignees == nil {
		acl.Assignees = []authz.AssigneeGroup{}
	}
	if acl.Rules == nil {
		acl.Rules = []authz.Rule{}
	}
	assignees, err = json.Marshal(acl.Assignees)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode assignees: %w", err)
	}
	rules, err = json.Marshal(acl.Rules)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	if acl.RestrictionSet != nil {
		restrictions, err = marshalRestrictions(acl.RestrictionSet)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return assignees, rules, restrictions, nil
}

// marshalRestrictions canonicalizes the restriction set (sorted language
// codes) so equality can be checked as byte equality in SQL.
func marshalRestrictions(rs *authz.RestrictionSet) ([]byte, error) {
	canonical := authz.RestrictionSet{}
	if len(rs.LanguageCodes) > 0 {
		canonical.LanguageCodes = append([]string(nil), rs.LanguageCodes...)
		sort.Strings(canonical.LanguageCodes)
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to encode restriction set: %w", err)
	}
	return raw, nil
}

// predicateBuilder collects WHERE conditions with positional arguments.
type predicateBuilder struct {
	conds []string
	args  []any
}

func (b *predicateBuilder) add(format string, args ...any) {
	placeholders := make([]any, len(args))
	for i, arg := range args {
		b.args = append(b.args, arg)
		placeholders[i] = fmt.Sprintf("$%d", len(b.args))
	}
	b.conds = append(b.conds, fmt.Sprintf(format, placeholders...))
}

func buildAclPredicate(q authz.Query) (string, []any) {
	var b predicateBuilder

	if len(q.AccountIDs) > 0 {
		b.add("account_id = ANY(%s)", q.AccountIDs)
	}
	if q.RoleID != "" {
		b.add("role_id = %s", q.RoleID)
	}
	if q.Restrictions != nil {
		if len(q.Restrictions.LanguageCodes) == 0 {
			b.conds = append(b.conds, "(restriction_set IS NULL OR restriction_set = '{}'::jsonb)")
		} else if raw, err := marshalRestrictions(q.Restrictions); err == nil {
			b.add("restriction_set = %s::jsonb", string(raw))
		}
	}
	if len(q.Assignees) > 0 {
		var alts []string
		for _, g := range q.Assignees {
			if g.Type == authz.AssigneePublic {
				b.add(
					"EXISTS (SELECT 1 FROM jsonb_array_elements(assignees) ag WHERE (ag->>'type')::int = %s)",
					int(g.Type),
				)
			} else {
				b.add(
					"EXISTS (SELECT 1 FROM jsonb_array_elements(assignees) ag WHERE (ag->>'type')::int = %s AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(ag->'ids') aid WHERE aid = ANY(%s)))",
					int(g.Type), g.IDs,
				)
			}
			alts = append(alts, b.conds[len(b.conds)-1])
			b.conds = b.conds[:len(b.conds)-1]
		}
		b.conds = append(b.conds, "("+strings.Join(alts, " OR ")+")")
	}
	if len(q.AssigneeIDs) > 0 {
		b.add(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(assignees) ag WHERE EXISTS (SELECT 1 FROM jsonb_array_elements_text(ag->'ids') aid WHERE aid = ANY(%s)))",
			q.AssigneeIDs,
		)
	}
	if len(q.Resources) > 0 {
		var alts []string
		for _, g := range q.Resources {
			b.add(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(rules) rl WHERE (rl->'resource'->>'type')::int = %s AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(rl->'resource'->'ids') rid WHERE rid = ANY(%s)))",
				int(g.Type), g.IDs,
			)
			alts = append(alts, b.conds[len(b.conds)-1])
			b.conds = b.conds[:len(b.conds)-1]
		}
		b.conds = append(b.conds, "("+strings.Join(alts, " OR ")+")")
	}
	if len(q.ResourceTypes) > 0 {
		types := make([]int, len(q.ResourceTypes))
		for i, t := range q.ResourceTypes {
			types[i] = int(t)
		}
		if q.Permission != nil {
			b.add(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(rules) rl WHERE (rl->'resource'->>'type')::int = ANY(%s) AND rl->'permissions' @> to_jsonb(%s::int))",
				types, int(*q.Permission),
			)
		} else {
			b.add(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(rules) rl WHERE (rl->'resource'->>'type')::int = ANY(%s))",
				types,
			)
		}
	}
	if len(q.Permissions) > 0 {
		perms := make([]int, len(q.Permissions))
		for i, p := range q.Permissions {
			perms[i] = int(p)
		}
		b.add(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(rules) rl WHERE EXISTS (SELECT 1 FROM jsonb_array_elements_text(rl->'permissions') pe WHERE pe::int = ANY(%s)))",
			perms,
		)
	}

	return strings.Join(b.conds, " AND "), b.args
}
