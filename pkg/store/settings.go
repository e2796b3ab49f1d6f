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

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// GetSetting decodes the JSONB value for key into out.
func (s *Store) GetSetting(ctx context.Context, key string, out any) error {
	var raw json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ragerr.NotFound("setting", key)
	}
	if err != nil {
		return ragerr.Database("setting select", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ragerr.Internal("decode setting "+key, err)
	}
	return nil
}

// SetSetting upserts a setting value as JSONB.
func (s *Store) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return ragerr.Internal("encode setting "+key, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, raw)
	if err != nil {
		return ragerr.Database("setting upsert", err)
	}
	return nil
}

// ListSettings returns all settings as raw JSON keyed by name.
func (s *Store) ListSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, ragerr.Database("setting list", err)
	}
	defer rows.Close()

	settings := map[string]json.RawMessage{}
	for rows.Next() {
		var key string
		var raw json.RawMessage
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, ragerr.Database("setting scan", err)
		}
		settings[key] = raw
	}
	return settings, rows.Err()
}
