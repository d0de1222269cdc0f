package router

import (
	"path"
	"strings"
)

// Policy lists the path prefixes that require a session and the prefixes that never do.
// Excluded prefixes win over protected ones regardless of order.
type Policy struct {
	Protected []string
	Excluded  []string
}

func NewPolicy(protected, excluded []string) Policy {
	return Policy{
		Protected: normalizeAll(protected),
		Excluded:  normalizeAll(excluded),
	}
}

// WithExcluded returns a copy of the policy with extra excluded prefixes.
func (p Policy) WithExcluded(prefixes ...string) Policy {
	excluded := make([]string, 0, len(p.Excluded)+len(prefixes))
	excluded = append(excluded, p.Excluded...)
	excluded = append(excluded, normalizeAll(prefixes)...)

	protected := make([]string, len(p.Protected))
	copy(protected, p.Protected)

	return Policy{Protected: protected, Excluded: excluded}
}

// IsProtected reports whether path needs a valid session under policy.
func IsProtected(path string, policy Policy) bool {
	path = Normalize(path)

	for _, prefix := range policy.Excluded {
		if matchesPrefix(path, prefix) {
			return false
		}
	}

	for _, prefix := range policy.Protected {
		if matchesPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// Normalize strips the query and fragment, forces a leading slash and cleans
// the result, so "/dashboard/", "//dashboard" and "/static/../dashboard" all
// become "/dashboard". The empty string normalizes to "/".
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = Normalize(prefix)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func normalizeAll(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Normalize(p))
	}
	return out
}
