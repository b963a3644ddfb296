package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"reserva/internal/apperr"
)

// Role is a closed set: platform operators see every tenant, tenant
// operators see exactly one, customers carry no tenant scope at all.
type Role string

const (
	RolePlatform Role = "platform"
	RoleTenant   Role = "tenant"
	RoleCustomer Role = "customer"
)

// Principal is the verified authorization context attached to every
// request. TenantID is set only for RoleTenant and is immutable for the
// lifetime of the credential that carried it.
type Principal struct {
	Role     Role
	TenantID uuid.UUID
	Subject  string
}

// Claims is the JWT payload for platform credentials.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	TenantID string `json:"tid,omitempty"`
}

// Guard parses credentials and enforces tenant scope. It is stateless;
// both operations are pure functions of their inputs.
type Guard struct {
	secret []byte
	issuer string
}

func NewGuard(secret, issuer string) *Guard {
	return &Guard{secret: []byte(secret), issuer: issuer}
}

// IssueToken signs a credential for the given principal. Used by tests and
// by the platform's provisioning tooling; the core itself only verifies.
func (g *Guard) IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    g.issuer,
			Subject:   p.Subject,
		},
		Role: string(p.Role),
	}
	if p.Role == RoleTenant {
		claims.TenantID = p.TenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}
	return signed, nil
}

// ParseCredential verifies a bearer token and produces the authorization
// context. Malformed, expired or mis-signed tokens yield ErrUnauthorized.
func (g *Guard) ParseCredential(tokenString string) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Principal{}, apperr.ErrUnauthorized
	}

	p := Principal{Subject: claims.Subject}

	switch Role(claims.Role) {
	case RolePlatform:
		p.Role = RolePlatform
	case RoleCustomer:
		p.Role = RoleCustomer
	case RoleTenant:
		p.Role = RoleTenant
		tid, err := uuid.Parse(claims.TenantID)
		if err != nil {
			return Principal{}, apperr.ErrUnauthorized
		}
		p.TenantID = tid
	default:
		return Principal{}, apperr.ErrUnauthorized
	}

	return p, nil
}

// CheckScope authorizes access to a tenant's data. Platform operators pass
// for any tenant; tenant operators only for their own. The HTTP boundary
// maps ErrScopeDenied to a not-found response so an unauthorized caller
// cannot confirm that another tenant's resource exists.
func CheckScope(p Principal, targetTenant uuid.UUID) error {
	switch p.Role {
	case RolePlatform:
		return nil
	case RoleTenant:
		if p.TenantID == targetTenant {
			return nil
		}
	}
	return apperr.ErrScopeDenied
}
