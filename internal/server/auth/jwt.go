package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"typ"`
}

// JWTIssuer signs HS256 JSON Web Tokens with a shared secret.
type JWTIssuer struct {
	cfg    Config
	secret []byte
}

var _ Issuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret []byte, cfg Config) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty jwt secret", ErrConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &JWTIssuer{cfg: cfg, secret: secret}, nil
}

func (i *JWTIssuer) IssueAccess(subject string) (string, time.Time, error) {
	return i.issue(subject, KindAccess)
}

func (i *JWTIssuer) IssueRefresh(subject string) (string, time.Time, error) {
	return i.issue(subject, KindRefresh)
}

func (i *JWTIssuer) issue(subject string, kind Kind) (string, time.Time, error) {
	iat, exp := i.cfg.window(kind)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Kind: kind,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *JWTIssuer) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.cfg.now),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}

	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, jwtError(err)
	}

	if claims.Subject == "" || claims.ID == "" || !validKind(claims.Kind) {
		return Claims{}, ErrTokenMalformed
	}

	out := Claims{
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func jwtError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
