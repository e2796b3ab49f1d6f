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

// Package ragerr defines the error surface shared by the ingestion and query
// pipelines. Every error carries a semantic kind, a stable code and a
// structured details map so workers and the HTTP layer can act on errors
// without string matching.
package ragerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error semantically.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindRateLimitExceeded  Kind = "rate_limit_exceeded"
	KindExternalService    Kind = "external_service"
	KindEmbedding          Kind = "embedding"
	KindRetrieval          Kind = "retrieval"
	KindDocumentProcessing Kind = "document_processing"
	KindQueue              Kind = "queue"
	KindDatabase           Kind = "database"
	KindInternal           Kind = "internal"
)

// Error is the platform error type.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can test classes of failure with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return true
}

// WithDetail returns e with an extra details entry. The receiver is mutated;
// the return value exists for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the failure is worth retrying. Only rate-limit
// and transient external-service failures qualify.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimitExceeded:
		return true
	case KindExternalService:
		code, ok := e.Details["status_code"].(int)
		if !ok {
			// No response was received, the failure happened in transport.
			return true
		}
		return code == http.StatusTooManyRequests ||
			code == http.StatusInternalServerError ||
			code == http.StatusBadGateway ||
			code == http.StatusServiceUnavailable ||
			code == http.StatusGatewayTimeout
	default:
		return false
	}
}

// HTTPStatus maps the error to the status the API layer must return.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error with the given kind, code and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an error wrapping an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	e := New(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
	return e.WithDetail("resource", resource).WithDetail("id", id)
}

// Validation reports an invalid input.
func Validation(message string) *Error {
	return New(KindValidation, "VALIDATION_ERROR", message)
}

// RateLimited reports an exhausted rate-limit window.
func RateLimited(retryAfterSeconds int) *Error {
	e := New(KindRateLimitExceeded, "RATE_LIMIT_EXCEEDED", "rate limit exceeded")
	return e.WithDetail("retry_after_seconds", retryAfterSeconds)
}

// External reports an upstream provider failure with its status code.
func External(provider string, statusCode int, message string, err error) *Error {
	e := Wrap(KindExternalService, "EXTERNAL_SERVICE_ERROR", message, err)
	return e.WithDetail("provider", provider).WithDetail("status_code", statusCode)
}

// Embedding reports an embedding provider or batch failure.
func Embedding(message string, err error) *Error {
	return Wrap(KindEmbedding, "EMBEDDING_ERROR", message, err)
}

// Retrieval reports a search-path failure.
func Retrieval(operation, message string, err error) *Error {
	e := Wrap(KindRetrieval, "RETRIEVAL_ERROR", message, err)
	return e.WithDetail("operation", operation)
}

// Processing reports an ingestion-stage failure. The stage name is recorded
// so the document's error message identifies where the pipeline stopped.
func Processing(stage, message string, err error) *Error {
	e := Wrap(KindDocumentProcessing, "DOCUMENT_PROCESSING_ERROR", message, err)
	return e.WithDetail("stage", stage)
}

// Queue reports a broker failure.
func Queue(operation string, err error) *Error {
	e := Wrap(KindQueue, "QUEUE_ERROR", fmt.Sprintf("queue %s failed", operation), err)
	return e.WithDetail("operation", operation)
}

// Database reports a relational-store failure.
func Database(operation string, err error) *Error {
	e := Wrap(KindDatabase, "DATABASE_ERROR", fmt.Sprintf("database %s failed", operation), err)
	return e.WithDetail("operation", operation)
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, "INTERNAL_ERROR", message, err)
}

// Stage extracts the ingestion stage from an error chain, or "".
func Stage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if s, ok := e.Details["stage"].(string); ok {
			return s
		}
	}
	return ""
}

// IsRetryable reports whether any error in the chain is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
