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

// Package ratelimit provides fixed-window request limiting backed by the
// relational store, so the limit holds across API replicas.
package ratelimit

import (
	"context"
	"time"
)

// Counter is the storage behind the limiter. The increment must be
// atomic with respect to concurrent callers on the same (key, window).
type Counter interface {
	IncrementRateLimit(ctx context.Context, key string, windowStart time.Time) (int, error)
}

// Config contains rate limiter configuration.
type Config struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// SetDefaults sets default values for rate limiter configuration
func (c *Config) SetDefaults() {
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 60
	}
}

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter int // seconds until the window resets
}

// Limiter admits requests within a per-minute fixed window.
type Limiter struct {
	counter Counter
	config  *Config
	now     func() time.Time
}

// New creates a limiter over the given counter.
func New(counter Counter, config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: true}
	}
	config.SetDefaults()
	return &Limiter{counter: counter, config: config, now: time.Now}
}

// Allow counts the request against the caller's current window and
// reports whether it is within the limit. A disabled limiter admits
// everything without touching storage.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	if !l.config.Enabled {
		return &Result{Allowed: true, Limit: l.config.RequestsPerMinute, Remaining: l.config.RequestsPerMinute}, nil
	}

	now := l.now().UTC()
	windowStart := now.Truncate(time.Minute)

	count, err := l.counter.IncrementRateLimit(ctx, key, windowStart)
	if err != nil {
		return nil, err
	}

	limit := l.config.RequestsPerMinute
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: int(windowStart.Add(time.Minute).Sub(now).Seconds()),
	}, nil
}
