package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeIncludePushesSimplePatterns(t *testing.T) {
	f := Compile(Spec{Include: map[string]string{
		"^dev$":  Star,
		"^prod$": Star,
	}})

	pushed, ok := f.ScopeInclude()
	require.True(t, ok)
	assert.Equal(t, "(?:^dev$)|(?:^prod$)", pushed)
}

func TestScopeIncludeQualifiedPatternDisablesPushdown(t *testing.T) {
	f := Compile(Spec{Include: map[string]string{`^analytics\.prod$`: Star}})

	// The client admits the qualified key, so a server-side comparison
	// against the bare schema name must not be pushed.
	assert.True(t, f.ScopeIncluded("analytics.prod"))
	_, ok := f.ScopeInclude()
	assert.False(t, ok)
}

func TestScopeIncludeOneQualifiedRuleDisablesWholePredicate(t *testing.T) {
	f := Compile(Spec{Include: map[string]string{
		"^prod$":             Star,
		`^analytics\.stage$`: Star,
	}})

	_, ok := f.ScopeInclude()
	assert.False(t, ok)
}

func TestScopeIncludeWildcardDotDisablesPushdown(t *testing.T) {
	// An unescaped dot can consume the qualifier separator: ^a.*d$
	// matches the full key "analytics.prod" but not the bare "prod".
	f := Compile(Spec{Include: map[string]string{"^a.*d$": Star}})

	assert.True(t, f.ScopeIncluded("analytics.prod"))
	_, ok := f.ScopeInclude()
	assert.False(t, ok)
}

func TestSegmentLocal(t *testing.T) {
	assert.True(t, segmentLocal("^prod$"))
	assert.True(t, segmentLocal("^dev_[a-z]+$"))

	assert.False(t, segmentLocal(`^analytics\.prod$`))
	assert.False(t, segmentLocal("^prod.*$"))
	assert.False(t, segmentLocal("^[^a]+$"))
	assert.False(t, segmentLocal(`^\W+$`))
}

func TestScopeExcludeQualifiedPatternStillPushed(t *testing.T) {
	// Excludes only narrow: a qualified pattern that never matches a
	// bare schema name simply fails to narrow server-side, and the
	// client re-applies it. Nothing the client keeps can be dropped.
	f := Compile(Spec{Exclude: map[string]string{`^analytics\.tmp$`: Star}})

	pushed, ok := f.ScopeExclude()
	require.True(t, ok)
	assert.Equal(t, `^analytics\.tmp$`, pushed)
}

func TestChildIncludeSelectsRulesByFullScopeKey(t *testing.T) {
	// Rule selection happens client-side against the qualified key, so
	// qualified scope patterns are fine here; only the child pattern is
	// pushed, and it is compared to the same bare table name on both
	// sides.
	f := Compile(Spec{Include: map[string]string{`^analytics\.prod$`: "^orders.*$"}})

	pushed, ok := f.ChildInclude("analytics.prod")
	require.True(t, ok)
	assert.Equal(t, "^orders.*$", pushed)

	_, ok = f.ChildInclude("analytics.stage")
	assert.False(t, ok)
}

func TestChildIncludeStarAdmitsAll(t *testing.T) {
	f := Compile(Spec{Include: map[string]string{"^prod$": Star}})

	_, ok := f.ChildInclude("db.prod")
	assert.False(t, ok)
}

func TestChildExcludeUnionsDenyList(t *testing.T) {
	f := Compile(Spec{
		Exclude:  map[string]string{"^prod$": ".*_tmp$"},
		DenyList: "^pg_temp",
	})

	pushed, ok := f.ChildExclude("db.prod")
	require.True(t, ok)
	assert.Equal(t, "(?:.*_tmp$)|(?:^pg_temp)", pushed)
}
