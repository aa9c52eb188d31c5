package condition

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRolesClaim is the claim read for roles when none is configured.
const DefaultRolesClaim = "roles"

// JWTAuthenticator turns HMAC-signed bearer tokens into an AuthState.
type JWTAuthenticator struct {
	secret     []byte
	rolesClaim string
	issuer     string
	now        func() time.Time
}

// JWTOption configures a JWTAuthenticator.
type JWTOption func(*JWTAuthenticator)

// WithRolesClaim sets the claim holding the role list.
func WithRolesClaim(claim string) JWTOption {
	return func(a *JWTAuthenticator) {
		if claim != "" {
			a.rolesClaim = claim
		}
	}
}

// WithIssuer requires tokens to carry iss == issuer.
func WithIssuer(issuer string) JWTOption {
	return func(a *JWTAuthenticator) {
		a.issuer = issuer
	}
}

// WithTokenClock replaces the time source used for expiry checks.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(a *JWTAuthenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
func NewJWTAuthenticator(secret []byte, opts ...JWTOption) *JWTAuthenticator {
	a := &JWTAuthenticator{
		secret:     secret,
		rolesClaim: DefaultRolesClaim,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate verifies token and extracts the subject and roles. A
// "Bearer " prefix is accepted.
func (a *JWTAuthenticator) Authenticate(token string) (AuthState, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return AuthState{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		return AuthState{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims.GetSubject()
	return AuthState{
		Authenticated: true,
		Subject:       sub,
		Roles:         rolesFromClaim(claims[a.rolesClaim]),
	}, nil
}

// Sign issues a token for subject with roles that expires after ttl. A
// zero ttl issues a token without expiry.
func (a *JWTAuthenticator) Sign(subject string, roles []string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":        subject,
		"iat":        now.Unix(),
		a.rolesClaim: roles,
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func rolesFromClaim(v any) []string {
	switch r := v.(type) {
	case string:
		return strings.Fields(strings.ReplaceAll(r, ",", " "))
	case []any:
		roles := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	case []string:
		return r
	}
	return nil
}
