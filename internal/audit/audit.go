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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeAclCreated        = "acl_created"
	TypeAclUpdated        = "acl_updated"
	TypeAclDeleted        = "acl_deleted"
	TypeAssigneeAdded     = "acl_assignee_added"
	TypeAssigneeRemoved   = "acl_assignee_removed"
	TypePublicReadGranted = "public_read_granted"
	TypePublicReadRevoked = "public_read_revoked"
	TypeAdminAdded        = "account_admin_added"
	TypeAdminRemoved      = "account_admin_removed"
	TypeRoleSaved         = "role_saved"
	TypeAccountPurged     = "account_acls_purged"
)

// Event represents an auditable ACL change
type Event struct {
	Type      string
	AccountID string
	ActorID   string
	AclID     string
	Metadata  map[string]any
	Timestamp time.Time
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("account_id", event.AccountID),
		slog.String("actor_id", event.ActorID),
		slog.String("acl_id", event.AclID),
		slog.Time("timestamp", event.Timestamp),
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a metadata key likely contains a secret
func isSecret(key string) bool {
	k := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "hash", "credential"}
	for _, s := range secrets {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// NopLogger discards all events. Used by tests and operational scripts.
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(ctx context.Context, event Event) {}
