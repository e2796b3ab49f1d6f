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

package main

import (
	"fmt"

	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/objstore"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ratelimit"
	"github.com/kadirpekel/ragstack/pkg/server"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, cleanup, err := loadConfig(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	repo, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	objects, err := objstore.New(ctx, &cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("failed to connect to object store: %w", err)
	}

	broker, err := queue.New(&cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer broker.Close()

	vectors, err := vectordb.NewQdrantStore(&cfg.VectorDB)
	if err != nil {
		return fmt.Errorf("failed to connect to vector store: %w", err)
	}
	defer vectors.Close()

	ix := sparse.NewIndex()
	if err := sparse.Rebuild(ctx, ix, vectors, vectordb.CollectionChunks); err != nil {
		logger.GetLogger().Warn("sparse index warm-up failed, starting empty", "error", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(repo, &cfg.RateLimit)
	}

	srv := server.New(server.Deps{
		Store:   repo,
		Objects: objects,
		Broker:  broker,
		Vectors: vectors,
		Sparse:  ix,
		Limiter: limiter,
	}, &cfg.Server)

	return srv.Start(ctx)
}
