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
	"context"
	"fmt"

	"github.com/kadirpekel/ragstack/pkg/agent"
	"github.com/kadirpekel/ragstack/pkg/answer"
	"github.com/kadirpekel/ragstack/pkg/chunking"
	"github.com/kadirpekel/ragstack/pkg/converter"
	"github.com/kadirpekel/ragstack/pkg/embedder"
	"github.com/kadirpekel/ragstack/pkg/language"
	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/objstore"
	"github.com/kadirpekel/ragstack/pkg/qa"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/rerank"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/summarizer"
	"github.com/kadirpekel/ragstack/pkg/tokenizer"
	"github.com/kadirpekel/ragstack/pkg/tree"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
	"github.com/kadirpekel/ragstack/pkg/vision"
	"github.com/kadirpekel/ragstack/pkg/worker"
)

// IngestWorkerCmd starts the document ingestion worker.
type IngestWorkerCmd struct{}

// QueryWorkerCmd starts the query worker.
type QueryWorkerCmd struct{}

// RequeuePendingCmd republishes pending documents to the ingestion
// queue. Useful after a broker wipe or a crashed worker.
type RequeuePendingCmd struct{}

// visionAdapter bridges the vision describer into the converter's
// image description hook.
type visionAdapter struct {
	describer *vision.Describer
}

func (a *visionAdapter) DescribeAll(ctx context.Context, images []converter.Image) (map[string]string, error) {
	batch := make([]vision.Image, len(images))
	for i, img := range images {
		batch[i] = vision.Image{ID: img.ID, Data: img.Data}
	}
	descriptions := map[string]string{}
	for _, d := range a.describer.DescribeBatch(ctx, batch) {
		descriptions[d.ImageID] = d.Description
	}
	return descriptions, nil
}

func (c *IngestWorkerCmd) Run(cli *CLI) error {
	cfg, cleanup, err := loadConfig(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	repo, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

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

	emb, err := embedder.NewOpenAIEmbedder(&cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	provider, err := llms.NewOpenAIProvider(&cfg.LLM)
	if err != nil {
		return err
	}
	defer provider.Close()

	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		return err
	}

	log := logger.GetLogger()

	describer, err := vision.New(&cfg.Vision)
	if err != nil {
		return err
	}
	defer describer.Close()

	summ, err := summarizer.New(provider, &cfg.Summarizer)
	if err != nil {
		return err
	}
	qaGen, err := qa.New(provider, &cfg.QA)
	if err != nil {
		return err
	}

	w := worker.NewIngestionWorker(worker.IngestionDeps{
		Store:       repo,
		Objects:     objects,
		Converter:   converter.New(log, converter.WithImageDescriber(&visionAdapter{describer: describer})),
		TreeBuilder: tree.NewBuilder(log),
		Language:    language.NewDetector(log),
		Summarizer:  summ,
		QA:          qaGen,
		Chunker:     chunking.NewOrchestrator(cfg.Chunking, tok, log),
		Embedder:    emb,
		Vectors:     vectors,
		Sparse:      ix,
		Tokenizer:   tok,
	})
	return w.Run(ctx, broker)
}

func (c *QueryWorkerCmd) Run(cli *CLI) error {
	cfg, cleanup, err := loadConfig(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	repo, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

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

	emb, err := embedder.NewOpenAIEmbedder(&cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	provider, err := llms.NewOpenAIProvider(&cfg.LLM)
	if err != nil {
		return err
	}
	defer provider.Close()

	retriever, err := retrieval.New(vectors, ix, &cfg.Retrieval)
	if err != nil {
		return err
	}

	w := worker.NewQueryWorker(worker.QueryDeps{
		Store:     repo,
		Embedder:  emb,
		Retriever: retriever,
		Reranker:  rerank.New(provider, &cfg.Rerank),
		Agent:     agent.New(provider, &cfg.Agent),
		Answerer:  answer.New(provider, &cfg.Answer),
	}, &cfg.Query)
	return w.Run(ctx, broker)
}

func (c *RequeuePendingCmd) Run(cli *CLI) error {
	cfg, cleanup, err := loadConfig(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	repo, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	broker, err := queue.New(&cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer broker.Close()

	log := logger.GetLogger()
	requeued := 0
	for offset := 0; ; {
		docs, _, err := repo.ListDocuments(ctx, store.StatusPending, 100, offset)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			job := queue.IngestionJob{
				DocumentID:       doc.ID,
				FilePath:         objstore.OriginalKey(doc.ID, doc.Filename),
				OriginalFilename: doc.Filename,
				MimeType:         doc.MimeType,
			}
			if err := broker.PublishIngestion(ctx, job); err != nil {
				return err
			}
			requeued++
		}
		offset += len(docs)
	}

	log.Info("Requeued pending documents", "count", requeued)
	fmt.Printf("Requeued %d pending documents\n", requeued)
	return nil
}
