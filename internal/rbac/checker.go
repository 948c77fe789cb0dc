package rbac

import (
	"context"
	"strings"
)

// Checker answers "may this role do this?" against a compiled policy table.
// Grants are exact permission strings; a trailing "*" grants a prefix
// (so "attempt:*" covers every attempt operation, and "*" covers everything).
type Checker struct {
	exact    map[string]map[string]struct{}
	prefixes map[string][]string
}

// NewChecker compiles a role→permissions table. A nil table compiles the
// package default, RolePermissions.
func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{
		exact:    make(map[string]map[string]struct{}, len(rp)),
		prefixes: make(map[string][]string, len(rp)),
	}
	for role, perms := range rp {
		for _, p := range perms {
			if strings.HasSuffix(p, "*") {
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(p, "*"))
				continue
			}
			if c.exact[role] == nil {
				c.exact[role] = make(map[string]struct{})
			}
			c.exact[role][p] = struct{}{}
		}
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if _, ok := c.exact[role][perm]; ok {
		return true
	}
	for _, pre := range c.prefixes[role] {
		if strings.HasPrefix(perm, pre) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
