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

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is an in-process Counter for tests and single-node
// deployments without postgres.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

// IncrementRateLimit implements Counter.
func (m *MemoryCounter) IncrementRateLimit(_ context.Context, key string, windowStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key + "|" + windowStart.Format(time.RFC3339)
	m.counts[k]++
	return m.counts[k], nil
}
