package filter

import "strings"

// Predicate pushdown: sources that can evaluate regular expressions
// server-side (Postgres ~ / !~) receive an alternation built from the
// raw user patterns. Pushdown only narrows the candidate set; the
// compiled matcher is always re-applied client-side so preflight and
// extraction share exact semantics regardless of the source's regex
// dialect.

// CaseInsensitive reports whether patterns should be pushed down with a
// case-insensitive operator.
func (c *Compiled) CaseInsensitive() bool { return c.spec.Options.CaseInsensitive }

// ScopeInclude returns an alternation of include scope patterns, or
// ok=false when there is no include constraint to push down. Scope
// patterns that can match across a "." are not pushable: the client
// matcher also tries them against the qualified "catalog.schema" key,
// while the server compares the bare schema name, so pushing such a
// pattern would drop schemas the client admits. One unpushable rule
// disables the whole predicate, since the pushed alternation must be a
// superset of every rule's admissions.
func (c *Compiled) ScopeInclude() (string, bool) {
	for i := range c.includes {
		if !c.includes[i].dead && !segmentLocal(c.includes[i].scopeSrc) {
			return "", false
		}
	}
	return alternation(c.includes, func(r *rule) (string, bool) {
		return r.scopeSrc, !r.dead
	})
}

// segmentLocal reports whether a pattern can only ever match within a
// single name segment. Any construct able to consume a "." (a literal
// or wildcard dot, a negated class, \D/\W/\S) could match a qualified
// key as a whole and is rejected.
func segmentLocal(pattern string) bool {
	if strings.ContainsRune(pattern, '.') {
		return false
	}
	for _, dotable := range []string{"[^", `\D`, `\W`, `\S`} {
		if strings.Contains(pattern, dotable) {
			return false
		}
	}
	return true
}

// ScopeExclude returns an alternation of scope patterns for blanket
// excludes (rules that remove the whole scope), or ok=false when none.
func (c *Compiled) ScopeExclude() (string, bool) {
	return alternation(c.excludes, func(r *rule) (string, bool) {
		blanket := r.star || (r.child != nil && r.child.MatchString(""))
		return r.scopeSrc, !r.dead && blanket
	})
}

// ChildInclude returns an alternation of child patterns from include
// rules whose scope matches scopeKey. ok=false means no constraint can
// be pushed down (no rules, or a matching rule admits all children).
func (c *Compiled) ChildInclude(scopeKey string) (string, bool) {
	if len(c.includes) == 0 {
		return "", false
	}
	var parts []string
	for i := range c.includes {
		r := &c.includes[i]
		if !r.matchesScope(scopeKey) {
			continue
		}
		if r.star {
			return "", false
		}
		parts = append(parts, r.childSrc)
	}
	return join(parts)
}

// ChildExclude returns an alternation of child patterns from exclude
// rules whose scope matches scopeKey, unioned with the deny list.
func (c *Compiled) ChildExclude(scopeKey string) (string, bool) {
	var parts []string
	for i := range c.excludes {
		r := &c.excludes[i]
		if r.dead || !r.matchesScope(scopeKey) {
			continue
		}
		if r.star {
			parts = append(parts, ".*")
			continue
		}
		parts = append(parts, r.childSrc)
	}
	if c.deny != nil {
		parts = append(parts, c.spec.DenyList)
	}
	return join(parts)
}

func alternation(rules []rule, pick func(*rule) (string, bool)) (string, bool) {
	var parts []string
	for i := range rules {
		if src, ok := pick(&rules[i]); ok {
			parts = append(parts, src)
		}
	}
	return join(parts)
}

func join(parts []string) (string, bool) {
	if len(parts) == 0 {
		return "", false
	}
	if len(parts) == 1 {
		return parts[0], true
	}
	return "(?:" + strings.Join(parts, ")|(?:") + ")", true
}
