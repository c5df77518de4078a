// Package services contains server-side business logic. AuthService
// coordinates password hashing, token issuance and the session store for
// every authentication flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// PasswordHasher is satisfied by *password.Hasher.
type PasswordHasher interface {
	NewSalt() ([]byte, error)
	Hash(password string, salt []byte) ([]byte, error)
	Verify(password string, salt, expected []byte) (bool, error)
}

// Store is satisfied by *repomanager.Storage.
type Store interface {
	Users() users.Repository
	Sessions() sessions.Repository
	InTx(ctx context.Context, fn repomanager.TxFunc) error
}

// ClientInfo describes the client a session is created for.
type ClientInfo struct {
	Device models.Device
	IP     string
}

// TokenPair is the result of every flow that issues credentials. The refresh
// fields are empty when only an access token was issued.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// DefaultReservedWords may not be used as identifier or nickname.
var DefaultReservedWords = []string{
	"admin", "administrator", "root", "system", "support", "moderator",
	"me", "api", "auth", "join", "signin", "signup", "logout", "sessions",
	"null", "undefined",
}

type Options struct {
	// ReservedWords replaces DefaultReservedWords when not nil. Matching is
	// case-insensitive.
	ReservedWords []string
	Logger        logging.Logger
	Metrics       *metrics.Metrics
}

// Flow names, used in logs and as the metrics "flow" label.
const (
	flowSignup         = "signup"
	flowSignin         = "signin"
	flowRenewAccess    = "renew_access"
	flowRenewRefresh   = "renew_refresh"
	flowLogout         = "logout"
	flowLogoutAll      = "logout_all"
	flowAuthenticate   = "authenticate"
	flowListSessions   = "list_sessions"
	flowChangePassword = "change_password"
)

// errRotationLost marks a rotation whose old session was removed by someone
// else between verification and delete.
var errRotationLost = errors.New("refresh token already rotated")

// AuthService is stateless between calls and safe for concurrent use.
type AuthService struct {
	store    Store
	hasher   PasswordHasher
	issuer   auth.Issuer
	reserved map[string]struct{}
	log      logging.Logger
	metrics  *metrics.Metrics

	dummyOnce sync.Once
	dummySalt []byte
	dummyHash []byte
}

func NewAuthService(store Store, hasher PasswordHasher, issuer auth.Issuer, opts Options) *AuthService {
	words := opts.ReservedWords
	if words == nil {
		words = DefaultReservedWords
	}
	reserved := make(map[string]struct{}, len(words))
	for _, w := range words {
		reserved[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	log := opts.Logger
	if log == nil {
		log = logging.Nop{}
	}

	return &AuthService{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		reserved: reserved,
		log:      log.With("module", "auth"),
		metrics:  opts.Metrics,
	}
}

// Signup creates a user and its first session. A taken or reserved
// identifier or nickname yields common.ErrorConflict.
func (s *AuthService) Signup(ctx context.Context, identifier, password, nickname string, client ClientInfo) (pair *TokenPair, err error) {
	defer s.track(flowSignup, &err)

	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(nickname) == "" || password == "" {
		return nil, fmt.Errorf("%w: identifier, password and nickname are required", common.ErrorValidation)
	}
	if client.IP == "" {
		return nil, fmt.Errorf("%w: client address is required", common.ErrorValidation)
	}
	if len(client.IP) > models.MaxIPLength {
		return nil, fmt.Errorf("%w: client address longer than %d", common.ErrorValidation, models.MaxIPLength)
	}
	if s.isReserved(identifier) || s.isReserved(nickname) {
		s.log.Warn(ctx, "signup with reserved name", "identifier", identifier, "nickname", nickname)
		return nil, common.ErrorConflict
	}

	taken, err := s.store.Users().ExistsByLoginOrNickname(ctx, identifier, nickname)
	if err != nil {
		return nil, s.internal(ctx, "signup lookup failed", err)
	}
	if taken {
		return nil, common.ErrorConflict
	}

	salt, hash, err := s.newCredentials(password)
	if err != nil {
		return nil, s.internal(ctx, "password hashing failed", err)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, ur users.Repository, sr sessions.Repository) error {
		user, err := ur.Create(ctx, &models.User{
			UserName:     identifier,
			Nickname:     nickname,
			PasswordHash: hash,
			Salt:         salt,
		})
		if err != nil {
			return err
		}
		pair, err = s.openSession(ctx, sr, user.ID, client)
		return err
	})
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, common.ErrorConflict), errors.Is(err, common.ErrorValidation):
		return nil, err
	default:
		return nil, s.internal(ctx, "signup failed", err)
	}
}

// Signin checks the password and opens a new session. Unknown identifiers
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, identifier, password string, client ClientInfo) (pair *TokenPair, err error) {
	defer s.track(flowSignin, &err)

	user, err := s.store.Users().GetUserByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnHash(password)
			return nil, s.reject(ctx, "signin for unknown identifier", "identifier", identifier)
		}
		return nil, s.internal(ctx, "signin lookup failed", err)
	}

	ok, err := s.verify(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "password verification failed", err)
	}
	if !ok {
		return nil, s.reject(ctx, "signin with wrong password", "user_id", user.ID)
	}

	pair, err = s.openSession(ctx, s.store.Sessions(), user.ID, client)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, err
		}
		return nil, s.internal(ctx, "session save failed", err)
	}

	s.log.Info(ctx, "signin", "user_id", user.ID, "ip", client.IP)
	return pair, nil
}

// RenewAccess issues a new access token for a live refresh token. The
// refresh token stays valid.
func (s *AuthService) RenewAccess(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer s.track(flowRenewAccess, &err)

	claims, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	access, exp, err := s.issuer.IssueAccess(claims.Subject)
	if err != nil {
		return nil, s.internal(ctx, "access token issue failed", err)
	}
	return &TokenPair{AccessToken: access, AccessExpiresAt: exp}, nil
}

// RenewRefresh rotates a refresh token: the new session is saved first, then
// the old one is removed. Each refresh token rotates at most once; a caller
// losing a concurrent rotation gets common.ErrorUnauthorized and its new
// session is discarded.
func (s *AuthService) RenewRefresh(ctx context.Context, refreshToken string, client ClientInfo) (pair *TokenPair, err error) {
	defer s.track(flowRenewRefresh, &err)

	claims, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, _ users.Repository, sr sessions.Repository) error {
		next, err := s.openSession(ctx, sr, claims.Subject, client)
		if err != nil {
			return err
		}

		deleted, err := sr.Delete(ctx, refreshToken)
		if err != nil {
			return err
		}
		if !deleted {
			if _, err := sr.Delete(ctx, next.RefreshToken); err != nil {
				return err
			}
			return errRotationLost
		}

		pair = next
		return nil
	})
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, errRotationLost):
		return nil, s.reject(ctx, "refresh token reused", "user_id", claims.Subject)
	case errors.Is(err, common.ErrorValidation):
		return nil, err
	default:
		return nil, s.internal(ctx, "refresh rotation failed", err)
	}
}

// Logout removes the session behind refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer s.track(flowLogout, &err)

	if refreshToken == "" {
		return nil
	}
	if _, err := s.store.Sessions().Delete(ctx, refreshToken); err != nil {
		return s.internal(ctx, "logout failed", err)
	}
	return nil
}

// Authenticate resolves an access token to the id of an existing user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (userID string, err error) {
	defer s.track(flowAuthenticate, &err)

	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return "", s.reject(ctx, "access token rejected", "error", err)
	}
	if claims.Kind != auth.KindAccess {
		return "", s.reject(ctx, "not an access token", "kind", claims.Kind)
	}

	if _, err := s.store.Users().GetUserByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", s.reject(ctx, "access token for unknown user", "user_id", claims.Subject)
		}
		return "", s.internal(ctx, "user lookup failed", err)
	}
	return claims.Subject, nil
}

// LogoutAll revokes every session of userID and returns how many were removed.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (n int64, err error) {
	defer s.track(flowLogoutAll, &err)

	n, err = s.store.Sessions().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, s.internal(ctx, "logout-all failed", err)
	}
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// ListSessions returns the live sessions of userID. Token values are
// cleared.
func (s *AuthService) ListSessions(ctx context.Context, userID string) (list []models.Session, err error) {
	defer s.track(flowListSessions, &err)

	list, err = s.store.Sessions().ListByUser(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "session list failed", err)
	}
	for i := range list {
		list[i].Token = ""
	}
	return list, nil
}

// ChangePassword replaces the password of userID after checking the old one,
// with a fresh salt, and revokes all sessions of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer s.track(flowChangePassword, &err)

	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrorValidation)
	}

	user, err := s.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.reject(ctx, "password change for unknown user", "user_id", userID)
		}
		return s.internal(ctx, "user lookup failed", err)
	}

	ok, err := s.verify(oldPassword, user.Salt, user.PasswordHash)
	if err != nil {
		return s.internal(ctx, "password verification failed", err)
	}
	if !ok {
		return s.reject(ctx, "password change with wrong password", "user_id", userID)
	}

	salt, hash, err := s.newCredentials(newPassword)
	if err != nil {
		return s.internal(ctx, "password hashing failed", err)
	}

	var revoked int64
	err = s.store.InTx(ctx, func(ctx context.Context, ur users.Repository, sr sessions.Repository) error {
		if err := ur.UpdatePassword(ctx, userID, hash, salt); err != nil {
			return err
		}
		n, err := sr.DeleteByUser(ctx, userID)
		revoked = n
		return err
	})
	if err != nil {
		return s.internal(ctx, "password change failed", err)
	}

	s.log.Info(ctx, "password changed", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// checkRefresh verifies token and its session. Every failure except an
// infrastructure error is reported as common.ErrorUnauthorized.
func (s *AuthService) checkRefresh(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return auth.Claims{}, s.reject(ctx, "refresh token rejected", "error", err)
	}
	if claims.Kind != auth.KindRefresh {
		return auth.Claims{}, s.reject(ctx, "not a refresh token", "kind", claims.Kind)
	}

	sess, err := s.store.Sessions().FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return auth.Claims{}, s.reject(ctx, "refresh token revoked", "user_id", claims.Subject)
		}
		return auth.Claims{}, s.internal(ctx, "session lookup failed", err)
	}
	if sess.UserID != claims.Subject {
		return auth.Claims{}, s.reject(ctx, "session owner mismatch", "user_id", claims.Subject, "session_id", sess.ID)
	}

	if _, err := s.store.Users().GetUserByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return auth.Claims{}, s.reject(ctx, "refresh token for unknown user", "user_id", claims.Subject)
		}
		return auth.Claims{}, s.internal(ctx, "user lookup failed", err)
	}
	return claims, nil
}

// openSession issues an access and a refresh token and stores the session
// of the refresh token in sr.
func (s *AuthService) openSession(ctx context.Context, sr sessions.Repository, userID string, client ClientInfo) (*TokenPair, error) {
	access, accessExp, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}

	if _, err := sr.Save(ctx, userID, refresh, refreshExp, client.Device, client.IP); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) isReserved(name string) bool {
	_, ok := s.reserved[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (s *AuthService) newCredentials(password string) (salt, hash []byte, err error) {
	salt, err = s.hasher.NewSalt()
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	hash, err = s.hasher.Hash(password, salt)
	s.metrics.ObserveHash(time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	return salt, hash, nil
}

func (s *AuthService) verify(password string, salt, expected []byte) (bool, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHash(time.Since(start)) }()
	return s.hasher.Verify(password, salt, expected)
}

// burnHash spends one password verification so that unknown identifiers
// take as long as wrong passwords.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		salt, err := s.hasher.NewSalt()
		if err != nil {
			return
		}
		hash, err := s.hasher.Hash("", salt)
		if err != nil {
			return
		}
		s.dummySalt, s.dummyHash = salt, hash
	})
	if s.dummyHash != nil {
		_, _ = s.verify(password, s.dummySalt, s.dummyHash)
	}
}

func (s *AuthService) reject(ctx context.Context, msg string, args ...any) error {
	s.log.Warn(ctx, msg, args...)
	return common.ErrorUnauthorized
}

func (s *AuthService) internal(ctx context.Context, msg string, err error) error {
	s.log.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}

func (s *AuthService) track(flow string, err *error) {
	s.metrics.ObserveFlow(flow, outcome(*err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, common.ErrorConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, common.ErrorUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}
