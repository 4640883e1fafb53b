package token

import (
	"encoding/json"
	"slices"
)

// RoleSet is an ordered, duplicate free list of roles. Comparisons are
// case-sensitive: "Admin" and "admin" are different roles.
type RoleSet []string

// NewRoleSet builds a set from roles, dropping empties and duplicates while
// keeping first-seen order.
func NewRoleSet(roles ...string) RoleSet {
	rs := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		if r == "" || slices.Contains(rs, r) {
			continue
		}
		rs = append(rs, r)
	}
	return rs
}

func (rs RoleSet) Contains(role string) bool {
	return slices.Contains(rs, role)
}

func (rs RoleSet) Len() int {
	return len(rs)
}

// MarshalJSON always emits an array, never null.
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	if rs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(rs))
}

// ClaimKind says how a role claim was encoded in the token.
type ClaimKind int

const (
	ClaimAbsent ClaimKind = iota
	ClaimSingle
	ClaimMany
)

// RoleClaim is a role claim as found in the token: missing, a bare string,
// or an array.
type RoleClaim struct {
	Kind   ClaimKind
	Single string
	Many   []string
}

// ParseRoleClaim classifies a decoded JSON value. Values of any other type
// are treated as absent, and non-string array entries are skipped.
func ParseRoleClaim(v any) RoleClaim {
	switch v := v.(type) {
	case string:
		return RoleClaim{Kind: ClaimSingle, Single: v}
	case []any:
		many := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				many = append(many, s)
			}
		}
		return RoleClaim{Kind: ClaimMany, Many: many}
	case []string:
		return RoleClaim{Kind: ClaimMany, Many: v}
	default:
		return RoleClaim{Kind: ClaimAbsent}
	}
}

// Roles normalizes the claim into a RoleSet.
func (c RoleClaim) Roles() RoleSet {
	switch c.Kind {
	case ClaimSingle:
		return NewRoleSet(c.Single)
	case ClaimMany:
		return NewRoleSet(c.Many...)
	default:
		return RoleSet{}
	}
}
