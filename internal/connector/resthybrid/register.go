package resthybrid

import (
	"github.com/metahub/mex-core/internal/source"
)

// init registers the hybrid factory with the gateway registry.
func init() {
	source.DefaultRegistry().Register("hybrid.rest", func(config map[string]any) (source.Gateway, error) {
		return New(config)
	})
}
