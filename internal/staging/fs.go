package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var _ Provider = (*FSProvider)(nil)

// FSProvider stores artifacts under a root directory on local disk.
type FSProvider struct {
	root string
}

// NewFSProvider creates a filesystem provider rooted at dir.
func NewFSProvider(dir string) (*FSProvider, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}
	return &FSProvider{root: dir}, nil
}

// ID returns the provider identifier.
func (p *FSProvider) ID() string { return ProviderFilesystem }

// PutBatch writes one complete batch. The file is written to a temp
// name and renamed so a crash mid-write never leaves a readable
// partial artifact.
func (p *FSProvider) PutBatch(ctx context.Context, req *PutRequest) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.Records)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	relPath := ArtifactPath(req.RunID, req.EntityType, req.BatchID)
	absPath := filepath.Join(p.root, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}
	if err := os.Rename(tmp, absPath); err != nil {
		os.Remove(tmp)
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}

	return &Artifact{
		EntityType: req.EntityType,
		RunID:      req.RunID,
		BatchID:    req.BatchID,
		Path:       relPath,
		Records:    len(req.Records),
		Bytes:      int64(len(data)),
	}, nil
}

// ListBatches returns artifact paths for one run, sorted.
func (p *FSProvider) ListBatches(ctx context.Context, runID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(p.root, runID, "raw")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, runID+"/raw/"+e.Name())
	}
	sort.Strings(paths)
	return paths, nil
}

// GetBatch reads one batch back.
func (p *FSProvider) GetBatch(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %s", path)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return records, nil
}
