package router

import "strings"

// Rewrite is a one-time prefix substitution applied to the request path
// before it is forwarded.
type Rewrite struct {
	From string
	To   string
}

// Apply replaces the From prefix of p with To. Paths that do not start
// with From are returned unchanged, and an empty result becomes "/".
func (rw Rewrite) Apply(p string) string {
	if rw.From == "" || !strings.HasPrefix(p, rw.From) {
		return p
	}

	out := rw.To + p[len(rw.From):]
	if out == "" {
		return "/"
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

// IsZero reports whether the rewrite leaves paths untouched.
func (rw Rewrite) IsZero() bool {
	return rw.From == ""
}
