// Package filter compiles user-supplied include/exclude scope patterns
// into normalized matchers shared by preflight and extraction.
//
// A Spec maps scope-key patterns (schema identifiers, possibly qualified
// as "catalog.schema") to child-name patterns or the literal "*". The
// compiled form is pure and deterministic: the same Spec always yields
// matchers with identical behavior, so the preflight check and the real
// extraction cannot drift apart.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Star is the wildcard child pattern meaning "all children of this scope".
const Star = "*"

// Options control how patterns are interpreted against source identifiers.
type Options struct {
	// CaseInsensitive compiles all patterns with (?i).
	CaseInsensitive bool `json:"caseInsensitive,omitempty"`

	// Anchored wraps each pattern in ^(?:...)$ so partial matches are
	// not treated as matches. Sources with exact-identifier semantics
	// (Postgres, SQL Server) should enable this.
	Anchored bool `json:"anchored,omitempty"`
}

// Spec is the immutable user-supplied filter configuration.
type Spec struct {
	// Include maps a scope-key pattern to a child-name pattern or "*".
	// An empty map means "include everything not excluded".
	Include map[string]string `json:"include,omitempty"`

	// Exclude maps a scope-key pattern to a child-name pattern. An
	// exclude always wins over an include that matches the same pair.
	Exclude map[string]string `json:"exclude,omitempty"`

	// DenyList is a regex applied to candidate names regardless of
	// scope (temp tables, system schemas).
	DenyList string `json:"denyList,omitempty"`

	Options Options `json:"options,omitempty"`
}

// rule is one compiled include or exclude entry.
type rule struct {
	scopeSrc string
	childSrc string
	scope    *regexp.Regexp
	child    *regexp.Regexp
	star     bool

	// dead marks a rule whose pattern failed to compile. Dead rules
	// never match anything; the failure surfaces as a warning.
	dead bool
}

// Compiled is the executable form of a Spec.
type Compiled struct {
	includes []rule
	excludes []rule
	deny     *regexp.Regexp
	warnings []string
	spec     Spec
}

// Compile normalizes a Spec into a Compiled matcher. Compile is total:
// malformed patterns are reported as warnings and compiled to rules that
// match nothing rather than aborting the run.
func Compile(spec Spec) *Compiled {
	c := &Compiled{spec: spec}

	c.includes = compileRules(spec.Include, spec.Options, "include", &c.warnings)
	c.excludes = compileRules(spec.Exclude, spec.Options, "exclude", &c.warnings)

	if spec.DenyList != "" {
		re, err := regexp.Compile(applyOptions(spec.DenyList, Options{CaseInsensitive: spec.Options.CaseInsensitive}))
		if err != nil {
			c.warnings = append(c.warnings,
				fmt.Sprintf("invalid deny-list pattern %q: %v; deny list disabled", spec.DenyList, err))
		} else {
			c.deny = re
		}
	}

	return c
}

func compileRules(entries map[string]string, opts Options, kind string, warnings *[]string) []rule {
	if len(entries) == 0 {
		return nil
	}

	// Sorted for deterministic warning order.
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rules := make([]rule, 0, len(entries))
	for _, key := range keys {
		child := entries[key]
		r := rule{scopeSrc: key, childSrc: child}

		scopeRe, err := regexp.Compile(applyOptions(key, opts))
		if err != nil {
			*warnings = append(*warnings,
				fmt.Sprintf("invalid %s scope pattern %q: %v; pattern will match nothing", kind, key, err))
			r.dead = true
			rules = append(rules, r)
			continue
		}
		r.scope = scopeRe

		if child == Star {
			r.star = true
			rules = append(rules, r)
			continue
		}

		childRe, err := regexp.Compile(applyOptions(child, opts))
		if err != nil {
			*warnings = append(*warnings,
				fmt.Sprintf("invalid %s child pattern %q for scope %q: %v; pattern will match nothing", kind, child, key, err))
			r.dead = true
			rules = append(rules, r)
			continue
		}
		r.child = childRe
		rules = append(rules, r)
	}
	return rules
}

func applyOptions(pattern string, opts Options) string {
	if opts.Anchored && !strings.HasPrefix(pattern, "^") {
		pattern = "^(?:" + pattern + ")$"
	}
	if opts.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	return pattern
}

// Warnings returns compilation warnings (malformed patterns).
func (c *Compiled) Warnings() []string { return c.warnings }

// Spec returns the source specification, for diagnostics.
func (c *Compiled) Spec() Spec { return c.spec }

// matchesScope reports whether a rule's scope pattern matches the scope
// key, which may be a bare schema name or a qualified "catalog.schema".
func (r *rule) matchesScope(scopeKey string) bool {
	if r.dead || r.scope == nil {
		return false
	}
	if r.scope.MatchString(scopeKey) {
		return true
	}
	// Qualified keys also match on the trailing segment.
	if i := strings.LastIndexByte(scopeKey, '.'); i >= 0 {
		return r.scope.MatchString(scopeKey[i+1:])
	}
	return false
}

// Matches reports whether a candidate child name under the given scope
// passes the filter. A candidate is included when there are no include
// rules, or some include rule admits it; an exclude rule matching the
// same pair always wins; the deny list is applied last. "No match" is a
// normal boolean outcome, never an error.
func (c *Compiled) Matches(scopeKey, candidate string) bool {
	included := len(c.includes) == 0
	for i := range c.includes {
		r := &c.includes[i]
		if !r.matchesScope(scopeKey) {
			continue
		}
		if r.star || (r.child != nil && r.child.MatchString(candidate)) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for i := range c.excludes {
		r := &c.excludes[i]
		if !r.matchesScope(scopeKey) {
			continue
		}
		if r.star || (r.child != nil && r.child.MatchString(candidate)) {
			return false
		}
	}

	if c.deny != nil && c.deny.MatchString(candidate) {
		return false
	}
	return true
}

// ScopeIncluded reports whether the scope itself (a schema) survives the
// filter. A scope is included when there are no include rules or some
// include scope pattern matches it. An exclude rule blankets the scope
// when it is "*" or its child pattern admits any name; narrower excludes
// only remove individual children, not the scope.
func (c *Compiled) ScopeIncluded(scopeKey string) bool {
	included := len(c.includes) == 0
	for i := range c.includes {
		if c.includes[i].matchesScope(scopeKey) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for i := range c.excludes {
		r := &c.excludes[i]
		if !r.matchesScope(scopeKey) {
			continue
		}
		if r.star || (r.child != nil && r.child.MatchString("")) {
			return false
		}
	}

	if c.deny != nil && c.deny.MatchString(scopeName(scopeKey)) {
		return false
	}
	return true
}

// CatalogIncluded reports whether a catalog survives the filter.
// Include rules name schema-level scopes, so an unmatched include never
// drops the enclosing catalog; only a blanket exclude or the deny list
// removes one.
func (c *Compiled) CatalogIncluded(name string) bool {
	for i := range c.excludes {
		r := &c.excludes[i]
		if !r.matchesScope(name) {
			continue
		}
		if r.star || (r.child != nil && r.child.MatchString("")) {
			return false
		}
	}
	if c.deny != nil && c.deny.MatchString(name) {
		return false
	}
	return true
}

// Describe renders the filter configuration for diagnostics and
// zero-match warnings.
func (c *Compiled) Describe() string {
	var b strings.Builder
	b.WriteString("include=")
	writeRuleSet(&b, c.includes)
	b.WriteString(" exclude=")
	writeRuleSet(&b, c.excludes)
	if c.spec.DenyList != "" {
		fmt.Fprintf(&b, " denyList=%q", c.spec.DenyList)
	}
	return b.String()
}

func writeRuleSet(b *strings.Builder, rules []rule) {
	if len(rules) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteByte('{')
	for i := range rules {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%q:%q", rules[i].scopeSrc, rules[i].childSrc)
	}
	b.WriteByte('}')
}

func scopeName(scopeKey string) string {
	if i := strings.LastIndexByte(scopeKey, '.'); i >= 0 {
		return scopeKey[i+1:]
	}
	return scopeKey
}
