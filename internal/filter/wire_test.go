package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecFromPayloadDashedKeys(t *testing.T) {
	payload := map[string]any{
		"include-metadata": `{"^prod$": "*"}`,
		"exclude-metadata": `{"^prod$": ["^tmp_.*$", "^scratch$"]}`,
		"temp-table-regex": "^pg_temp",
	}

	spec, err := SpecFromPayload(payload, Options{})
	require.NoError(t, err)

	assert.Equal(t, Star, spec.Include["^prod$"])
	assert.Equal(t, "(?:^tmp_.*$)|(?:^scratch$)", spec.Exclude["^prod$"])
	assert.Equal(t, "^pg_temp", spec.DenyList)
}

func TestSpecFromPayloadUnderscoreKeys(t *testing.T) {
	payload := map[string]any{
		"include_filter": `{"^analytics$": "^fact_.*$"}`,
	}

	spec, err := SpecFromPayload(payload, Options{})
	require.NoError(t, err)
	assert.Equal(t, "^fact_.*$", spec.Include["^analytics$"])
	assert.Empty(t, spec.Exclude)
}

func TestSpecFromPayloadObjectValue(t *testing.T) {
	// Frontends may send the object directly instead of string-encoded.
	payload := map[string]any{
		"include-metadata": map[string]any{
			"^prod$": map[string]any{"orders": "*", "invoices": "*"},
		},
	}

	spec, err := SpecFromPayload(payload, Options{})
	require.NoError(t, err)
	assert.Equal(t, "(?:invoices)|(?:orders)", spec.Include["^prod$"])
}

func TestParseWireEmptyStrings(t *testing.T) {
	spec, err := ParseWire("", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, spec.Include)
	assert.Empty(t, spec.Exclude)

	// Empty spec admits everything.
	c := Compile(spec)
	assert.True(t, c.Matches("any", "thing"))
}

func TestParseWireArrayWithStar(t *testing.T) {
	spec, err := ParseWire(`{"^prod$": ["^a$", "*"]}`, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, Star, spec.Include["^prod$"])
}

func TestParseWireMalformedJSON(t *testing.T) {
	_, err := ParseWire(`{not json`, "", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include filter")
}

func TestSpecFromPayloadRejectsNonStringPattern(t *testing.T) {
	payload := map[string]any{
		"include-metadata": map[string]any{"^prod$": []any{42}},
	}
	_, err := SpecFromPayload(payload, Options{})
	require.Error(t, err)
}
