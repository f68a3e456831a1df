package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileDeterminism(t *testing.T) {
	spec := Spec{
		Include:  map[string]string{"^prod$": "orders.*", "^stage$": Star},
		Exclude:  map[string]string{"^prod$": ".*_tmp$"},
		DenyList: "^pg_temp",
	}

	a := Compile(spec)
	b := Compile(spec)

	cases := []struct{ scope, name string }{
		{"prod", "orders"},
		{"prod", "orders_tmp"},
		{"stage", "anything"},
		{"test", "orders"},
		{"prod", "pg_temp_1"},
		{"warehouse.prod", "orders_archive"},
	}
	for _, tc := range cases {
		assert.Equal(t, a.Matches(tc.scope, tc.name), b.Matches(tc.scope, tc.name),
			"divergent result for %s/%s", tc.scope, tc.name)
	}
	assert.Equal(t, a.Warnings(), b.Warnings())
}

func TestExcludePrecedence(t *testing.T) {
	c := Compile(Spec{
		Include: map[string]string{"^prod$": "orders.*"},
		Exclude: map[string]string{"^prod$": "orders_secret"},
	})

	assert.True(t, c.Matches("prod", "orders_public"))
	// Both include and exclude match: exclude wins.
	assert.False(t, c.Matches("prod", "orders_secret"))
}

func TestEmptyIncludeMatchesEverything(t *testing.T) {
	c := Compile(Spec{DenyList: "^tmp_"})

	assert.True(t, c.Matches("prod", "orders"))
	assert.True(t, c.Matches("anything", "at_all"))
	assert.False(t, c.Matches("prod", "tmp_scratch"))
}

func TestDenyListAppliesLast(t *testing.T) {
	c := Compile(Spec{
		Include:  map[string]string{"^prod$": Star},
		DenyList: "_backup$",
	})

	assert.True(t, c.Matches("prod", "orders"))
	assert.False(t, c.Matches("prod", "orders_backup"))
}

func TestMalformedPatternWarnsAndMatchesNothing(t *testing.T) {
	c := Compile(Spec{
		Include: map[string]string{"[invalid": Star, "^ok$": Star},
	})

	require.Len(t, c.Warnings(), 1)
	assert.Contains(t, c.Warnings()[0], "[invalid")

	// The dead rule never admits anything; the valid one still works.
	assert.False(t, c.Matches("[invalid", "x"))
	assert.True(t, c.Matches("ok", "x"))
}

func TestScopeIncluded(t *testing.T) {
	c := Compile(Spec{Include: map[string]string{"^prod$": Star}})

	assert.True(t, c.ScopeIncluded("prod"))
	assert.False(t, c.ScopeIncluded("test"))
	// Qualified keys match on the trailing segment too.
	assert.True(t, c.ScopeIncluded("warehouse.prod"))
}

func TestScopeIncludedBlanketExclude(t *testing.T) {
	c := Compile(Spec{Exclude: map[string]string{"^.*$": "^.*$"}})

	assert.False(t, c.ScopeIncluded("prod"))
	assert.False(t, c.ScopeIncluded("test"))
	assert.False(t, c.Matches("prod", "orders"))
}

func TestNarrowExcludeKeepsScope(t *testing.T) {
	c := Compile(Spec{Exclude: map[string]string{"^prod$": "^orders_tmp$"}})

	// Excluding one table does not blanket the schema.
	assert.True(t, c.ScopeIncluded("prod"))
	assert.True(t, c.Matches("prod", "orders"))
	assert.False(t, c.Matches("prod", "orders_tmp"))
}

func TestOptionsCaseInsensitive(t *testing.T) {
	c := Compile(Spec{
		Include: map[string]string{"^PROD$": "^Orders$"},
		Options: Options{CaseInsensitive: true},
	})

	assert.True(t, c.Matches("prod", "orders"))
	assert.True(t, c.Matches("PROD", "ORDERS"))
}

func TestOptionsAnchored(t *testing.T) {
	loose := Compile(Spec{Include: map[string]string{"prod": "orders"}})
	anchored := Compile(Spec{
		Include: map[string]string{"prod": "orders"},
		Options: Options{Anchored: true},
	})

	assert.True(t, loose.Matches("prod_eu", "orders_archive"))
	assert.False(t, anchored.Matches("prod_eu", "orders_archive"))
	assert.True(t, anchored.Matches("prod", "orders"))
}

func TestCatalogIncluded(t *testing.T) {
	// Include rules name schema scopes; they never drop a catalog.
	c := Compile(Spec{Include: map[string]string{"^prod$": Star}})
	assert.True(t, c.CatalogIncluded("warehouse"))

	// A blanket exclude does.
	c = Compile(Spec{Exclude: map[string]string{"^.*$": "^.*$"}})
	assert.False(t, c.CatalogIncluded("warehouse"))

	// A narrow exclude does not.
	c = Compile(Spec{Exclude: map[string]string{"^warehouse$": "^secret$"}})
	assert.True(t, c.CatalogIncluded("warehouse"))
}

func TestDescribeCarriesPatterns(t *testing.T) {
	c := Compile(Spec{
		Include:  map[string]string{"^prod$": Star},
		DenyList: "^tmp_",
	})

	desc := c.Describe()
	assert.Contains(t, desc, "^prod$")
	assert.Contains(t, desc, "^tmp_")
}
