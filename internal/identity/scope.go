package identity

import "strings"

// ScopeAll grants every scope.
const ScopeAll = "all"

// HasScope reports whether p holds scope or one of its parents. Scopes are
// slash-separated, so "banshares" satisfies "banshares/create".
func (p *Principal) HasScope(scope string) bool {
	return HasScope(p.Scopes, scope)
}

func HasScope(granted []string, scope string) bool {
	set := make(map[string]bool, len(granted))
	for _, s := range granted {
		set[s] = true
	}
	if set[ScopeAll] {
		return true
	}

	current := scope
	for {
		if set[current] {
			return true
		}
		i := strings.LastIndex(current, "/")
		if i < 0 {
			return false
		}
		current = current[:i]
	}
}

func splitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
}
