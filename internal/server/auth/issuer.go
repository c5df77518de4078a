// Package auth issues and verifies the signed, time-bounded credentials of
// gophauth: short-lived access tokens and long-lived refresh tokens.
//
// Tokens are stateless. An Issuer never consults the session store; the
// revocation check belongs to the caller.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Kind tells access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// kindClaim is the claim name carrying the token Kind.
const kindClaim = "typ"

// Verification failures. All of them wrap common.ErrInvalidToken, so callers
// that do not care about the reason can match that one value.
var (
	ErrTokenMalformed = fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	ErrTokenSignature = fmt.Errorf("%w: bad signature", common.ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", common.ErrInvalidToken)

	ErrConfig = errors.New("invalid issuer config")
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Kind      Kind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer creates and verifies tokens. Returned expiry instants equal the
// token's own exp claim exactly.
type Issuer interface {
	IssueAccess(subject string) (token string, expiresAt time.Time, err error)
	IssueRefresh(subject string) (token string, expiresAt time.Time, err error)
	Verify(token string) (Claims, error)
}

// Config is shared by every Issuer implementation.
type Config struct {
	// Issuer is written to and required in the "iss" claim. Empty disables the check.
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

func (c Config) validate() error {
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrConfig)
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// window returns issue and expiry instants for kind. Both are truncated to
// whole seconds because that is the precision of the exp claim.
func (c Config) window(kind Kind) (iat, exp time.Time) {
	iat = c.now().Truncate(time.Second)
	if kind == KindRefresh {
		return iat, iat.Add(c.RefreshTTL)
	}
	return iat, iat.Add(c.AccessTTL)
}

func validKind(k Kind) bool {
	return k == KindAccess || k == KindRefresh
}

// Supported token schemes.
const (
	SchemeJWT    = "jwt"
	SchemePaseto = "paseto"
)

// NewIssuer picks an implementation by scheme. jwtSecret is used for
// SchemeJWT, pasetoKeyHex (Ed25519 secret key, hex) for SchemePaseto.
func NewIssuer(scheme, jwtSecret, pasetoKeyHex string, cfg Config) (Issuer, error) {
	switch scheme {
	case SchemeJWT, "":
		return NewJWTIssuer([]byte(jwtSecret), cfg)
	case SchemePaseto:
		return NewPasetoIssuer(pasetoKeyHex, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown token scheme %q", ErrConfig, scheme)
	}
}
