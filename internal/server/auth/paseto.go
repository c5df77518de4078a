package auth

import (
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

const pasetoV4PublicPrefix = "v4.public."

// PasetoIssuer signs PASETO v4.public tokens with an Ed25519 key pair.
type PasetoIssuer struct {
	cfg    Config
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

var _ Issuer = (*PasetoIssuer)(nil)

// NewPasetoIssuer builds an Issuer from a hex-encoded Ed25519 secret key.
func NewPasetoIssuer(secretKeyHex string, cfg Config) (*PasetoIssuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(strings.TrimSpace(secretKeyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: paseto key: %v", ErrConfig, err)
	}

	return &PasetoIssuer{cfg: cfg, secret: secret, public: secret.Public()}, nil
}

// GeneratePasetoKeyHex returns a fresh Ed25519 secret key, hex encoded.
func GeneratePasetoKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

// PasetoPublicKeyHex returns the verification key matching secretKeyHex.
func PasetoPublicKeyHex(secretKeyHex string) (string, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(strings.TrimSpace(secretKeyHex))
	if err != nil {
		return "", fmt.Errorf("%w: paseto key: %v", ErrConfig, err)
	}
	return secret.Public().ExportHex(), nil
}

// PublicKeyHex exports the verification key for other services.
func (i *PasetoIssuer) PublicKeyHex() string {
	return i.public.ExportHex()
}

func (i *PasetoIssuer) IssueAccess(subject string) (string, time.Time, error) {
	return i.issue(subject, KindAccess)
}

func (i *PasetoIssuer) IssueRefresh(subject string) (string, time.Time, error) {
	return i.issue(subject, KindRefresh)
}

func (i *PasetoIssuer) issue(subject string, kind Kind) (string, time.Time, error) {
	iat, exp := i.cfg.window(kind)

	tok := paseto.NewToken()
	tok.SetIssuer(i.cfg.Issuer)
	tok.SetSubject(subject)
	tok.SetJti(uuid.NewString())
	tok.SetIssuedAt(iat)
	tok.SetNotBefore(iat)
	tok.SetExpiration(exp)
	tok.SetString(kindClaim, string(kind))

	return tok.V4Sign(i.secret, nil), exp, nil
}

// Verify checks the signature first, then the claims. Expiry is evaluated
// here rather than by a parser rule so the configured clock applies and
// the failure can be reported as ErrTokenExpired.
func (i *PasetoIssuer) Verify(token string) (Claims, error) {
	if !strings.HasPrefix(token, pasetoV4PublicPrefix) {
		return Claims{}, ErrTokenMalformed
	}

	parser := paseto.NewParserWithoutExpiryCheck()
	parsed, err := parser.ParseV4Public(i.public, token, nil)
	if err != nil {
		return Claims{}, ErrTokenSignature
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	if !i.cfg.now().Before(exp) {
		return Claims{}, ErrTokenExpired
	}

	if i.cfg.Issuer != "" {
		iss, err := parsed.GetIssuer()
		if err != nil || iss != i.cfg.Issuer {
			return Claims{}, ErrTokenMalformed
		}
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrTokenMalformed
	}
	jti, err := parsed.GetJti()
	if err != nil || jti == "" {
		return Claims{}, ErrTokenMalformed
	}
	kind, err := parsed.GetString(kindClaim)
	if err != nil || !validKind(Kind(kind)) {
		return Claims{}, ErrTokenMalformed
	}
	iat, _ := parsed.GetIssuedAt()

	return Claims{
		Subject:   sub,
		Kind:      Kind(kind),
		ID:        jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}
