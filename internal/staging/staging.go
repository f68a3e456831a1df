// Package staging persists extraction artifacts.
//
// An artifact is one JSON file per entity-type batch, path-partitioned
// by run identifier: <runID>/raw/<entityType>_<batchID>.json, each file
// an array of source-native records. Batches are all-or-nothing: a
// provider either writes the complete batch or nothing, so a cancelled
// activity never leaves partial output.
package staging

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	ProviderMemory      = "memory"
	ProviderFilesystem  = "fs"
	ProviderObjectStore = "object.minio"

	// DefaultMemoryCapBytes is the max bytes allowed for the in-memory provider.
	DefaultMemoryCapBytes int64 = 8 * 1024 * 1024
)

// ErrorCode represents a structured staging error code.
type ErrorCode string

const (
	CodeStagingUnavailable ErrorCode = "E_STAGING_UNAVAILABLE"
	CodeStageTooLarge      ErrorCode = "E_STAGE_TOO_LARGE"
)

// Error carries a staging error code and retryability hint.
type Error struct {
	Code      ErrorCode
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Artifact describes one persisted batch. Never mutated after the
// activity that wrote it returns; deleted only by external retention.
type Artifact struct {
	EntityType string `json:"entityType"`
	RunID      string `json:"runId"`
	BatchID    string `json:"batchId"`
	Path       string `json:"path"`
	Records    int    `json:"records"`
	Bytes      int64  `json:"bytes"`
}

// PutRequest is the provider input for one batch.
type PutRequest struct {
	RunID      string
	EntityType string
	BatchID    string
	Records    []map[string]any
}

// Provider is a pluggable artifact backend (memory, fs, object store).
type Provider interface {
	ID() string
	PutBatch(ctx context.Context, req *PutRequest) (*Artifact, error)
	ListBatches(ctx context.Context, runID string) ([]string, error)
	GetBatch(ctx context.Context, path string) ([]map[string]any, error)
}

// ArtifactPath builds the canonical batch path.
func ArtifactPath(runID, entityType, batchID string) string {
	return fmt.Sprintf("%s/raw/%s_%s.json", runID, entityType, batchID)
}

// NewBatchID creates an opaque batch identifier.
func NewBatchID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Registry holds available artifact providers for selection.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds a registry with optional initial providers.
func NewRegistry(providers ...Provider) *Registry {
	reg := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		reg.Register(p)
	}
	return reg
}

// Register adds or replaces a provider by ID.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get returns a provider by ID.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ProviderIDs returns registered provider IDs.
func (r *Registry) ProviderIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// Select chooses a provider by preference with fallbacks.
func (r *Registry) Select(preferred string) (Provider, error) {
	if preferred != "" {
		if p, ok := r.Get(preferred); ok {
			return p, nil
		}
	}
	for _, id := range []string{ProviderObjectStore, ProviderFilesystem, ProviderMemory} {
		if p, ok := r.Get(id); ok {
			return p, nil
		}
	}
	return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: fmt.Errorf("no artifact providers available")}
}
