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

// Package objstore keeps all document artifacts in an S3-compatible
// bucket, one folder per document id.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// Config contains object store configuration.
type Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// SetDefaults sets default values for object store configuration
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:9000"
	}
	if c.Bucket == "" {
		c.Bucket = "documents"
	}
}

// Validate validates object store configuration
func (c *Config) Validate() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return ragerr.Validation("object store credentials are required")
	}
	return nil
}

// Store reads and writes document artifacts.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New creates a Store and ensures the bucket exists.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_CLIENT", "failed to create object store client", err)
	}

	s := &Store{client: client, bucket: config.Bucket, logger: logger.GetLogger()}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_BUCKET", "failed to check bucket", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another process may have created it in between.
		if exists, checkErr := s.client.BucketExists(ctx, s.bucket); checkErr == nil && exists {
			return nil
		}
		return ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_BUCKET", "failed to create bucket", err)
	}
	s.logger.Info("Created bucket", "bucket", s.bucket)
	return nil
}

// OriginalKey returns the object key of a document's original file.
// Exported so a stalled document can be requeued without re-reading
// the key from anywhere else.
func OriginalKey(documentID, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".bin"
	}
	return documentID + "/original" + ext
}

func markdownKey(documentID string) string { return documentID + "/document.md" }
func metadataKey(documentID string) string { return documentID + "/metadata.json" }
func summaryKey(documentID string) string  { return documentID + "/summary.md" }
func qaPairsKey(documentID string) string  { return documentID + "/qa_pairs.json" }
func imageKey(documentID, id string) string {
	return fmt.Sprintf("%s/images/%s.png", documentID, id)
}

// PutOriginal stores the uploaded file as {id}/original.<ext> and
// returns the object key.
func (s *Store) PutOriginal(ctx context.Context, documentID, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := OriginalKey(documentID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_PUT", "failed to store original", err)
	}
	s.logger.Info("Stored original", "document_id", documentID, "key", key, "bytes", size)
	return key, nil
}

// PutMarkdown stores the converted document as {id}/document.md.
func (s *Store) PutMarkdown(ctx context.Context, documentID, markdown string) error {
	return s.putString(ctx, markdownKey(documentID), markdown, "text/markdown")
}

// PutSummary stores the generated summary as {id}/summary.md.
func (s *Store) PutSummary(ctx context.Context, documentID, summary string) error {
	return s.putString(ctx, summaryKey(documentID), summary, "text/markdown")
}

// PutMetadata stores arbitrary metadata as {id}/metadata.json.
func (s *Store) PutMetadata(ctx context.Context, documentID string, metadata any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return ragerr.Internal("encode metadata", err)
	}
	return s.putString(ctx, metadataKey(documentID), string(raw), "application/json")
}

// PutQAPairs stores generated Q&A pairs as {id}/qa_pairs.json.
func (s *Store) PutQAPairs(ctx context.Context, documentID string, pairs any) error {
	raw, err := json.Marshal(pairs)
	if err != nil {
		return ragerr.Internal("encode qa pairs", err)
	}
	return s.putString(ctx, qaPairsKey(documentID), string(raw), "application/json")
}

// PutImage stores an extracted image as {id}/images/{imageID}.png.
func (s *Store) PutImage(ctx context.Context, documentID, imageID string, data []byte) (string, error) {
	key := imageKey(documentID, imageID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_PUT", "failed to store image", err)
	}
	return key, nil
}

func (s *Store) putString(ctx context.Context, key, content, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_PUT", "failed to store "+key, err)
	}
	return nil
}

// GetObject returns the content of an object by key.
func (s *Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_GET", "failed to get "+key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_GET", "failed to read "+key, err)
	}
	return data, nil
}

// GetMarkdown returns the converted document text.
func (s *Store) GetMarkdown(ctx context.Context, documentID string) (string, error) {
	data, err := s.GetObject(ctx, markdownKey(documentID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteDocument removes every object under the document's folder.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	prefix := documentID + "/"
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var failed int
	for obj := range objects {
		if obj.Err != nil {
			return ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_LIST", "failed to list "+prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn("Failed to remove object", "key", obj.Key, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return ragerr.New(ragerr.KindExternalService, "OBJSTORE_DELETE",
			fmt.Sprintf("failed to remove %d objects under %s", failed, prefix))
	}
	s.logger.Info("Deleted document objects", "document_id", documentID)
	return nil
}

// Healthy reports whether the bucket is reachable.
func (s *Store) Healthy(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return ragerr.Wrap(ragerr.KindExternalService, "OBJSTORE_HEALTH", "object store unreachable", err)
	}
	return nil
}
