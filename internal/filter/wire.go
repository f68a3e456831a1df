package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Wire format: the wizard frontend sends two string fields, each a
// string-encoded JSON object mapping scope key -> "*" | pattern |
// array of patterns | object of child-scope patterns. Both the
// "include-metadata"/"exclude-metadata" and "include_filter"/
// "exclude_filter" key pairs are accepted.

var includeKeys = []string{"include-metadata", "include_filter", "include"}
var excludeKeys = []string{"exclude-metadata", "exclude_filter", "exclude"}

// SpecFromPayload extracts a Spec from a request payload map.
func SpecFromPayload(payload map[string]any, opts Options) (Spec, error) {
	include, err := wireField(payload, includeKeys)
	if err != nil {
		return Spec{}, fmt.Errorf("include filter: %w", err)
	}
	exclude, err := wireField(payload, excludeKeys)
	if err != nil {
		return Spec{}, fmt.Errorf("exclude filter: %w", err)
	}

	spec := Spec{Include: include, Exclude: exclude, Options: opts}
	if deny, ok := payload["temp-table-regex"].(string); ok {
		spec.DenyList = deny
	}
	return spec, nil
}

// ParseWire decodes the two string-encoded filter objects.
func ParseWire(includeJSON, excludeJSON string, opts Options) (Spec, error) {
	include, err := decodeWireObject(includeJSON)
	if err != nil {
		return Spec{}, fmt.Errorf("include filter: %w", err)
	}
	exclude, err := decodeWireObject(excludeJSON)
	if err != nil {
		return Spec{}, fmt.Errorf("exclude filter: %w", err)
	}
	return Spec{Include: include, Exclude: exclude, Options: opts}, nil
}

func wireField(payload map[string]any, keys []string) (map[string]string, error) {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			return decodeWireObject(v)
		case map[string]any:
			return normalizeWireObject(v)
		default:
			return nil, fmt.Errorf("unsupported filter payload type %T for %q", raw, key)
		}
	}
	return nil, nil
}

func decodeWireObject(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return normalizeWireObject(obj)
}

// normalizeWireObject flattens each scope entry into a single child
// pattern: arrays and objects become an alternation.
func normalizeWireObject(obj map[string]any) (map[string]string, error) {
	if len(obj) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(obj))
	for key, raw := range obj {
		switch v := raw.(type) {
		case string:
			out[key] = v
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("scope %q: non-string pattern %v", key, item)
				}
				if s == Star {
					parts = []string{Star}
					break
				}
				parts = append(parts, s)
			}
			out[key] = joinPatterns(parts)
		case map[string]any:
			parts := make([]string, 0, len(v))
			for child := range v {
				parts = append(parts, child)
			}
			sort.Strings(parts)
			out[key] = joinPatterns(parts)
		default:
			return nil, fmt.Errorf("scope %q: unsupported pattern value %v", key, raw)
		}
	}
	return out, nil
}

func joinPatterns(parts []string) string {
	switch len(parts) {
	case 0:
		return Star
	case 1:
		return parts[0]
	}
	for _, p := range parts {
		if p == Star {
			return Star
		}
	}
	return "(?:" + strings.Join(parts, ")|(?:") + ")"
}
