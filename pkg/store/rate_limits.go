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
	"time"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// IncrementRateLimit counts a request against the (key, window) row and
// returns the count after the increment. The conditional upsert makes the
// read-modify-write atomic across processes.
func (s *Store) IncrementRateLimit(ctx context.Context, key string, windowStart time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rate_limits (key, window_start, request_count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (key, window_start)
		 DO UPDATE SET request_count = rate_limits.request_count + 1
		 RETURNING request_count`,
		key, windowStart).Scan(&count)
	if err != nil {
		return 0, ragerr.Database("rate limit upsert", err)
	}
	return count, nil
}

// PruneRateLimits removes windows that started before the cutoff.
func (s *Store) PruneRateLimits(ctx context.Context, before time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM rate_limits WHERE window_start < $1`, before)
	if err != nil {
		return ragerr.Database("rate limit prune", err)
	}
	return nil
}
