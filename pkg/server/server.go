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

// Package server exposes the HTTP API: document upload and management,
// query submission, settings, and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/objstore"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/ratelimit"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// Repository is the relational surface the handlers use.
type Repository interface {
	CreateDocument(ctx context.Context, filename, mimeType string, sizeBytes int64) (*store.Document, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context, status string, limit, offset int) ([]store.Document, int, error)
	DeleteDocument(ctx context.Context, id string) error
	CreateQuery(ctx context.Context, queryText string, documentFilter []string) (*store.Query, error)
	GetQuery(ctx context.Context, id string) (*store.Query, error)
	ListSettings(ctx context.Context) (map[string]json.RawMessage, error)
	SetSetting(ctx context.Context, key string, value any) error
	Healthy(ctx context.Context) error
}

// Objects is the object store surface the handlers use.
type Objects interface {
	PutOriginal(ctx context.Context, documentID, filename, contentType string, r io.Reader, size int64) (string, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Healthy(ctx context.Context) error
}

// Publisher is the broker surface the handlers use.
type Publisher interface {
	PublishIngestion(ctx context.Context, job queue.IngestionJob) error
	PublishQuery(ctx context.Context, job queue.QueryJob) error
	Healthy(ctx context.Context) error
}

// Deps are the server's collaborators.
type Deps struct {
	Store   Repository
	Objects Objects
	Broker  Publisher
	Vectors vectordb.Store
	Sparse  *sparse.Index
	Limiter *ratelimit.Limiter
}

// Config contains API server configuration.
type Config struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`
}

// SetDefaults sets default values for server configuration
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 100 << 20
	}
}

// Server is the HTTP API server.
type Server struct {
	deps       Deps
	config     *Config
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates the server and its router.
func New(deps Deps, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()

	s := &Server{deps: deps, config: config, logger: logger.GetLogger()}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(CorrelationID)
	r.Use(ResponseTime)
	if s.deps.Limiter != nil {
		r.Use(RateLimit(s.deps.Limiter))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.handleUploadDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/{id}", s.handleGetDocument)
		r.Get("/{id}/chunks", s.handleGetDocumentChunks)
		r.Delete("/{id}", s.handleDeleteDocument)
	})

	r.Route("/queries", func(r chi.Router) {
		r.Post("/", s.handleCreateQuery)
		r.Get("/{id}", s.handleGetQuery)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleListSettings)
		r.Put("/{key}", s.handlePutSetting)
	})

	return r
}

// Start serves until the context is cancelled, then drains.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error to the taxonomy's HTTP status and the
// standard {error, message, details?} body.
func writeError(w http.ResponseWriter, err error) {
	var ragError *ragerr.Error
	if errors.As(err, &ragError) {
		body := map[string]any{
			"error":   ragError.Code,
			"message": ragError.Message,
		}
		if len(ragError.Details) > 0 {
			body["details"] = ragError.Details
		}
		writeJSON(w, ragError.HTTPStatus(), body)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   "INTERNAL",
		"message": err.Error(),
	})
}

var _ Objects = (*objstore.Store)(nil)
var _ Repository = (*store.Store)(nil)
var _ Publisher = (*queue.Broker)(nil)
