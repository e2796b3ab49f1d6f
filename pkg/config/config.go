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

// Package config loads the platform configuration tree from YAML with
// environment variable expansion.
package config

import (
	"fmt"

	"github.com/kadirpekel/ragstack/pkg/agent"
	"github.com/kadirpekel/ragstack/pkg/answer"
	"github.com/kadirpekel/ragstack/pkg/chunking"
	"github.com/kadirpekel/ragstack/pkg/embedder"
	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/objstore"
	"github.com/kadirpekel/ragstack/pkg/qa"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ratelimit"
	"github.com/kadirpekel/ragstack/pkg/rerank"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
	"github.com/kadirpekel/ragstack/pkg/server"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/summarizer"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
	"github.com/kadirpekel/ragstack/pkg/vision"
	"github.com/kadirpekel/ragstack/pkg/worker"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// SetDefaults sets default values for logging configuration
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// Config is the root configuration tree. Every section maps onto the
// owning package's Config type so defaults and validation live with
// the component they describe.
type Config struct {
	Logging     LoggingConfig      `yaml:"logging" json:"logging"`
	Server      server.Config      `yaml:"server" json:"server"`
	Database    store.Config       `yaml:"database" json:"database"`
	ObjectStore objstore.Config    `yaml:"object_store" json:"object_store"`
	Queue       queue.Config       `yaml:"queue" json:"queue"`
	VectorDB    vectordb.Config    `yaml:"vector_db" json:"vector_db"`
	Embedder    embedder.Config    `yaml:"embedder" json:"embedder"`
	LLM         llms.Config        `yaml:"llm" json:"llm"`
	Vision      vision.Config      `yaml:"vision" json:"vision"`
	Chunking    chunking.Config    `yaml:"chunking" json:"chunking"`
	Summarizer  summarizer.Config  `yaml:"summarizer" json:"summarizer"`
	QA          qa.Config          `yaml:"qa" json:"qa"`
	Retrieval   retrieval.Config   `yaml:"retrieval" json:"retrieval"`
	Rerank      rerank.Config      `yaml:"rerank" json:"rerank"`
	Agent       agent.Config       `yaml:"agent" json:"agent"`
	Answer      answer.Config      `yaml:"answer" json:"answer"`
	Query       worker.QueryConfig `yaml:"query" json:"query"`
	RateLimit   ratelimit.Config   `yaml:"rate_limit" json:"rate_limit"`
}

// SetDefaults sets default values across the whole tree
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.ObjectStore.SetDefaults()
	c.Queue.SetDefaults()
	c.VectorDB.SetDefaults()
	c.Embedder.SetDefaults()
	c.LLM.SetDefaults()
	c.Vision.SetDefaults()
	c.Chunking.SetDefaults()
	c.Summarizer.SetDefaults()
	c.QA.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Rerank.SetDefaults()
	c.Agent.SetDefaults()
	c.Answer.SetDefaults()
	c.Query.SetDefaults()
	c.RateLimit.SetDefaults()
}

// Validate validates every section that has hard requirements.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"database", c.Database.Validate},
		{"object_store", c.ObjectStore.Validate},
		{"vector_db", c.VectorDB.Validate},
		{"embedder", c.Embedder.Validate},
		{"llm", c.LLM.Validate},
		{"chunking", c.Chunking.Validate},
		{"summarizer", c.Summarizer.Validate},
		{"qa", c.QA.Validate},
		{"retrieval", c.Retrieval.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
