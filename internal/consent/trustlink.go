package consent

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Trust link errors
var (
	ErrTrustLinkInvalid  = errors.New("invalid trust link")
	ErrTrustLinkExpired  = errors.New("trust link expired")
	ErrAgentMismatch     = errors.New("trust link agent mismatch")
	ErrScopeNotDelegated = errors.New("scope not delegated by trust link")
)

// TrustLink is a signed assertion letting one agent act under a scope
// granted to another. The Token field carries the signed compact form
// attached to agent messages.
type TrustLink struct {
	FromAgent    string
	ToAgent      string
	Scope        Scope
	IssuedAt     time.Time
	ExpiresAt    time.Time
	SignedByUser string
	Token        string
}

// trustClaims is the JWT claim set for a trust link.
type trustClaims struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// Signer issues and verifies trust links using HS256 signing with a
// process-wide secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a trust link signer with the given secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("trust link secret must not be empty")
	}
	return &Signer{secret: secret}, nil
}

// Issue creates a trust link permitting toAgent to act under fromAgent's
// grant of the given scope, signed on behalf of the user.
func (s *Signer) Issue(fromAgent, toAgent string, scope Scope, signedByUser string, ttl time.Duration) (TrustLink, error) {
	if fromAgent == "" || toAgent == "" {
		return TrustLink{}, fmt.Errorf("%w: agent identities must not be empty", ErrTrustLinkInvalid)
	}

	now := time.Now()
	expires := now.Add(ttl)

	claims := trustClaims{
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Scope:     scope.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   signedByUser,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TrustLink{}, fmt.Errorf("failed to sign trust link: %w", err)
	}

	return TrustLink{
		FromAgent:    fromAgent,
		ToAgent:      toAgent,
		Scope:        scope,
		IssuedAt:     now,
		ExpiresAt:    expires,
		SignedByUser: signedByUser,
		Token:        token,
	}, nil
}

// Verify validates a compact trust link token against the expected agent
// pair and required scope. It returns the decoded link on success.
func (s *Signer) Verify(token, fromAgent, toAgent string, required Scope) (TrustLink, error) {
	var claims trustClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TrustLink{}, ErrTrustLinkExpired
		}
		return TrustLink{}, fmt.Errorf("%w: %v", ErrTrustLinkInvalid, err)
	}
	if !parsed.Valid {
		return TrustLink{}, ErrTrustLinkInvalid
	}

	if claims.FromAgent != fromAgent || claims.ToAgent != toAgent {
		return TrustLink{}, ErrAgentMismatch
	}
	if Scope(claims.Scope) != required {
		return TrustLink{}, fmt.Errorf("%w: %s", ErrScopeNotDelegated, required)
	}

	link := TrustLink{
		FromAgent:    claims.FromAgent,
		ToAgent:      claims.ToAgent,
		Scope:        Scope(claims.Scope),
		SignedByUser: claims.Subject,
		Token:        token,
	}
	if claims.IssuedAt != nil {
		link.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		link.ExpiresAt = claims.ExpiresAt.Time
	}
	return link, nil
}
