package run

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metahub/mex-core/internal/extract"
)

func TestCollectorConcurrentAppendsLoseNothing(t *testing.T) {
	const n = 200
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Append(&extract.Stats{
				Activity:    extract.ActivityColumns,
				Scope:       fmt.Sprintf("db.prod.t%d", i),
				RecordCount: 1,
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, c.Len())
	assert.Equal(t, n, c.TotalRecords())
}

func TestCollectorIgnoresNil(t *testing.T) {
	c := NewCollector()
	c.Append(nil)
	assert.Equal(t, 0, c.Len())
}

func TestCollectorWarnings(t *testing.T) {
	c := NewCollector()
	c.Append(&extract.Stats{Activity: "a", Warnings: []string{"w1"}})
	c.Append(&extract.Stats{Activity: "b", Warnings: []string{"w2", "w3"}})
	assert.Equal(t, []string{"w1", "w2", "w3"}, c.Warnings())
}
