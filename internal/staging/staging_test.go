package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, map[string]any{"name": "table", "position": i})
	}
	return records
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "run-1/raw/table_abc123.json", ArtifactPath("run-1", "table", "abc123"))
}

func TestMemoryProviderRoundTrip(t *testing.T) {
	p := NewMemoryProvider(0)
	ctx := context.Background()

	artifact, err := p.PutBatch(ctx, &PutRequest{
		RunID:      "run-1",
		EntityType: "table",
		BatchID:    "b1",
		Records:    testRecords(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1/raw/table_b1.json", artifact.Path)
	assert.Equal(t, 3, artifact.Records)
	assert.Positive(t, artifact.Bytes)

	paths, err := p.ListBatches(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/raw/table_b1.json"}, paths)

	records, err := p.GetBatch(ctx, artifact.Path)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestMemoryProviderCapRejectsWholeBatch(t *testing.T) {
	p := NewMemoryProvider(64)
	ctx := context.Background()

	_, err := p.PutBatch(ctx, &PutRequest{
		RunID:      "run-1",
		EntityType: "column",
		BatchID:    "big",
		Records:    testRecords(100),
	})
	require.Error(t, err)

	var stgErr *Error
	require.ErrorAs(t, err, &stgErr)
	assert.Equal(t, CodeStageTooLarge, stgErr.Code)
	assert.False(t, stgErr.Retryable)

	// Nothing partial was kept.
	paths, err := p.ListBatches(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestMemoryProviderCancelledContext(t *testing.T) {
	p := NewMemoryProvider(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.PutBatch(ctx, &PutRequest{RunID: "r", EntityType: "table", BatchID: "b", Records: testRecords(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSProviderRoundTrip(t *testing.T) {
	p, err := NewFSProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	artifact, err := p.PutBatch(ctx, &PutRequest{
		RunID:      "run-2",
		EntityType: "schema",
		BatchID:    "b1",
		Records:    testRecords(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-2/raw/schema_b1.json", artifact.Path)

	paths, err := p.ListBatches(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	records, err := p.GetBatch(ctx, paths[0])
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFSProviderListMissingRun(t *testing.T) {
	p, err := NewFSProvider(t.TempDir())
	require.NoError(t, err)

	paths, err := p.ListBatches(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRegistrySelectFallback(t *testing.T) {
	mem := NewMemoryProvider(0)
	reg := NewRegistry(mem)

	// Unknown preference falls back to what exists.
	p, err := reg.Select("object.minio")
	require.NoError(t, err)
	assert.Equal(t, ProviderMemory, p.ID())

	p, err = reg.Select("")
	require.NoError(t, err)
	assert.Equal(t, ProviderMemory, p.ID())
}

func TestRegistrySelectEmpty(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Select("")
	require.Error(t, err)

	var stgErr *Error
	require.ErrorAs(t, err, &stgErr)
	assert.Equal(t, CodeStagingUnavailable, stgErr.Code)
}

func TestNewBatchID(t *testing.T) {
	a, b := NewBatchID(), NewBatchID()
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}
