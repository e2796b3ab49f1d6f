// Copyright 2025 Kadir Pekel
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

package server

import (
	"context"
	"net/http"
	"time"
)

const (
	statusReachable   = "reachable"
	statusUnreachable = "unreachable"
)

// handleHealth probes every dependency. Any unreachable dependency
// turns the overall status to degraded and the response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database":     probe(ctx, s.deps.Store.Healthy),
		"object_store": probe(ctx, s.deps.Objects.Healthy),
		"broker":       probe(ctx, s.deps.Broker.Healthy),
	}
	if s.deps.Vectors != nil {
		checks["vector_store"] = probe(ctx, s.deps.Vectors.Healthy)
	}

	status := http.StatusOK
	overall := "ok"
	for _, state := range checks {
		if state != statusReachable {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}

	writeJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": checks,
	})
}

func probe(ctx context.Context, healthy func(context.Context) error) string {
	if err := healthy(ctx); err != nil {
		return statusUnreachable
	}
	return statusReachable
}
