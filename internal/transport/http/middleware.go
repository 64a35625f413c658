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
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/docuflow/docuflow/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// CallerMiddleware extracts the caller's identity. User identity comes from
// the X-User-Id header set by the API gateway after authentication. A request
// presenting the shared backend key is marked as a trusted backend service,
// which relaxes ACL visibility filtering.
func (h *Handler) CallerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get("X-User-Id"); userID != "" {
			ctx = context.WithValue(ctx, actorIDKey, userID)
		}
		if key := r.Header.Get("X-Backend-Key"); key != "" {
			if h.backendKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(h.backendKey)) == 1 {
				ctx = context.WithValue(ctx, backendKey, true)
			} else {
				slog.WarnContext(ctx, "invalid backend key presented",
					logger.RemoteAddr(r.RemoteAddr), logger.Path(r.URL.Path))
				respondError(w, http.StatusForbidden, "invalid backend key")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser enforces an authenticated caller on user-scoped routes.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetActorID(r.Context()) == "" && !IsBackend(r.Context()) {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
