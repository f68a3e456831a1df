package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var _ Provider = (*MemoryProvider)(nil)

// MemoryProvider keeps artifacts in process memory. Used in tests and
// single-process runs without an object store.
type MemoryProvider struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	capBytes int64
	used     int64
}

// NewMemoryProvider creates a memory provider with the given byte cap.
// A non-positive cap uses DefaultMemoryCapBytes.
func NewMemoryProvider(capBytes int64) *MemoryProvider {
	if capBytes <= 0 {
		capBytes = DefaultMemoryCapBytes
	}
	return &MemoryProvider{
		objects:  make(map[string][]byte),
		capBytes: capBytes,
	}
}

// ID returns the provider identifier.
func (p *MemoryProvider) ID() string { return ProviderMemory }

// PutBatch stores one complete batch. The write is rejected entirely
// when it would exceed the cap; no partial state is kept.
func (p *MemoryProvider) PutBatch(ctx context.Context, req *PutRequest) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.Records)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	path := ArtifactPath(req.RunID, req.EntityType, req.BatchID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used+int64(len(data)) > p.capBytes {
		return nil, &Error{
			Code:      CodeStageTooLarge,
			Retryable: false,
			Err:       fmt.Errorf("batch of %d bytes exceeds memory cap (%d of %d used)", len(data), p.used, p.capBytes),
		}
	}
	if prev, ok := p.objects[path]; ok {
		p.used -= int64(len(prev))
	}
	p.objects[path] = data
	p.used += int64(len(data))

	return &Artifact{
		EntityType: req.EntityType,
		RunID:      req.RunID,
		BatchID:    req.BatchID,
		Path:       path,
		Records:    len(req.Records),
		Bytes:      int64(len(data)),
	}, nil
}

// ListBatches returns artifact paths for one run, sorted.
func (p *MemoryProvider) ListBatches(ctx context.Context, runID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	prefix := runID + "/raw/"
	var paths []string
	for path := range p.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// GetBatch reads one batch back.
func (p *MemoryProvider) GetBatch(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	data, ok := p.objects[path]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s", path)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return records, nil
}
