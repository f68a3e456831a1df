package sqlcat

import (
	"github.com/metahub/mex-core/internal/source"
)

// init registers SQL-catalog factories with the gateway registry.
func init() {
	registry := source.DefaultRegistry()

	registry.Register("sql.postgres", func(config map[string]any) (source.Gateway, error) {
		return NewPostgres(config)
	})

	registry.Register("sql.generic", func(config map[string]any) (source.Gateway, error) {
		return NewBase(config)
	})
}
