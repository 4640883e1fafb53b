// Package token decodes the claims of a bearer token into an Identity.
//
// Signatures and expiry are not verified: the backend checks the token on
// every request, the client only needs the claims to label the user and gate
// screens.
package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/escala-app/escala/errors"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
)

// RoleClaimURI is the claim key ASP.NET Identity uses for roles.
const RoleClaimURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

// RoleClaimShort is the fallback role claim.
const RoleClaimShort = "role"

// ErrMalformed is returned when the token can't be parsed into claims.
var ErrMalformed = errors.NewC("token: malformed", codes.InvalidArgument).
	WithPublicMessage("Your session is invalid, please sign in again.")

// Identity is the user described by a token's claims.
type Identity struct {
	SubjectID   string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Birthday    string    `json:"birthday,omitempty"`
	Roles       RoleSet   `json:"roles"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
}

// HasRole reports whether the identity carries the exact role.
func (i Identity) HasRole(role string) bool {
	return i.Roles.Contains(role)
}

// Decode parses the claims of a raw JWT. The token must have the three
// segment shape and a JSON object payload, anything else is ErrMalformed.
// The header is not inspected: neither alg nor typ matter when the signature
// is never checked.
func Decode(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, errors.Mark(ErrMalformed, 0).Append("empty token")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Identity{}, errors.Mark(ErrMalformed, 0).Append(fmt.Sprintf("%d segments", len(parts)))
	}
	payload, err := jwt.NewParser(jwt.WithPaddingAllowed()).DecodeSegment(parts[1])
	if err != nil {
		return Identity{}, errors.Mark(ErrMalformed, 0).Append(err.Error())
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Identity{}, errors.Mark(ErrMalformed, 0).Append(err.Error())
	}
	if claims == nil {
		return Identity{}, errors.Mark(ErrMalformed, 0).Append("payload is not an object")
	}

	id := Identity{
		SubjectID:   stringClaim(claims, "sub"),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
		Phone:       stringClaim(claims, "phone"),
		Birthday:    stringClaim(claims, "birthday"),
		Roles:       rolesFromClaims(claims),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// rolesFromClaims prefers the ASP.NET claim and only falls back to "role"
// when the former yields nothing.
func rolesFromClaims(claims jwt.MapClaims) RoleSet {
	if rs := ParseRoleClaim(claims[RoleClaimURI]).Roles(); len(rs) > 0 {
		return rs
	}
	return ParseRoleClaim(claims[RoleClaimShort]).Roles()
}
