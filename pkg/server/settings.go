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
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Store.ListSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if settings == nil {
		settings = map[string]json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// handlePutSetting upserts a single setting. The value is arbitrary
// JSON; interpretation is up to the component that reads the key.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if len(key) > 100 {
		writeError(w, ragerr.Validation("setting key must be at most 100 characters"))
		return
	}

	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, ragerr.Validation("request body must be valid JSON with a value field"))
		return
	}
	if len(body.Value) == 0 {
		writeError(w, ragerr.Validation("value is required"))
		return
	}

	if err := s.deps.Store.SetSetting(r.Context(), key, body.Value); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"value": body.Value,
	})
}
