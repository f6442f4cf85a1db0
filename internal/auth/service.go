// Package auth implements the authentication service: credential
// verification, bearer-token issuance with eviction of the prior session,
// logout, and identity lookup from the session cache.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dawnmoon/charon/internal/observability"
	"github.com/dawnmoon/charon/internal/rbac"
	"github.com/dawnmoon/charon/internal/session"
	"github.com/dawnmoon/charon/internal/shared"
)

// CredentialSource is the slice of the credential store the service needs.
type CredentialSource interface {
	FindUserByUsername(ctx context.Context, username string) (*rbac.User, error)
	CreateUser(ctx context.Context, username, passwordHash, realName, email string) (*rbac.User, error)
}

// PermissionSource resolves a user's roles and permission codes from the
// credential store. Implemented by the authz resolver.
type PermissionSource interface {
	Resolve(ctx context.Context, userID int64) ([]string, error)
	ResolveRoles(ctx context.Context, userID int64) ([]string, error)
}

// lockStripes bounds the per-user login locks.
const lockStripes = 64

// Service orchestrates login, logout and identity lookups. It is a
// stateless facade over the session cache and credential store, safe for
// concurrent use.
type Service struct {
	creds      CredentialSource
	perms      PermissionSource
	sessions   *session.Store
	ttl        time.Duration
	bcryptCost int
	logger     *slog.Logger
	metrics    *observability.Metrics

	// userLocks serialises the delete-then-write sequence for the same
	// user within this process. Concurrent logins across processes remain
	// last-writer-wins.
	userLocks [lockStripes]sync.Mutex
}

// NewService constructs a Service.
func NewService(creds CredentialSource, perms PermissionSource, sessions *session.Store, ttl time.Duration, bcryptCost int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		creds:      creds,
		perms:      perms,
		sessions:   sessions,
		ttl:        ttl,
		bcryptCost: bcryptCost,
		logger:     logger,
		metrics:    metrics,
	}
}

// Login verifies credentials and issues a new bearer token, evicting any
// prior session for the user. Unknown usernames and wrong passwords fail
// identically.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.creds.FindUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil {
		s.metrics.ObserveLogin(false)
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.ObserveLogin(false)
		return "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.metrics.ObserveLogin(false)
		return "", shared.ErrAccountDisabled
	}

	lock := &s.userLocks[uint64(user.ID)%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	// Single-active-session policy: unconditionally evict whatever token
	// the user currently holds.
	oldToken, err := s.sessions.GetUserToken(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if oldToken != "" {
		if err := s.sessions.Delete(ctx, oldToken); err != nil {
			return "", err
		}
		if err := s.sessions.DeleteUserToken(ctx, user.ID); err != nil {
			return "", err
		}
		s.metrics.ObserveEviction()
		s.logger.Info("prior session evicted", slog.Int64("user_id", user.ID))
	}

	token, err := NewToken()
	if err != nil {
		return "", err
	}

	roles, err := s.perms.ResolveRoles(ctx, user.ID)
	if err != nil {
		return "", err
	}
	perms, err := s.perms.Resolve(ctx, user.ID)
	if err != nil {
		return "", err
	}

	rec := &session.Record{
		UserID:      user.ID,
		Username:    user.Username,
		Roles:       roles,
		Permissions: perms,
		LoginTimeMs: time.Now().UnixMilli(),
	}
	if err := s.sessions.Put(ctx, token, rec, s.ttl); err != nil {
		return "", err
	}
	if err := s.sessions.PutUserToken(ctx, user.ID, token, s.ttl); err != nil {
		return "", err
	}

	s.metrics.ObserveLogin(true)
	s.logger.Info("login",
		slog.Int64("user_id", user.ID),
		slog.Int("permissions", len(perms)))
	return token, nil
}

// Register creates a new user account. Duplicate usernames map to
// shared.ErrDuplicate.
func (s *Service) Register(ctx context.Context, username, password, realName, email string) (*rbac.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.creds.CreateUser(ctx, username, string(hash), realName, email)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// LogoutSelf deletes the session for the given token. Blank or unknown
// tokens are a no-op: logout is idempotent.
func (s *Service) LogoutSelf(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	rec, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.DeleteUserToken(ctx, rec.UserID); err != nil {
		return err
	}
	s.logger.Info("logout", slog.Int64("user_id", rec.UserID))
	return nil
}

// ForceLogout terminates the target user's session from the cache side.
// The user's next authenticated request fails identity lookup and must
// re-authenticate. A user with no session is a no-op.
func (s *Service) ForceLogout(ctx context.Context, userID int64) error {
	token, err := s.sessions.GetUserToken(ctx, userID)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.DeleteUserToken(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("forced logout", slog.Int64("user_id", userID))
	return nil
}

// IdentityFromToken resolves the user ID for a token. Pure cache lookup:
// a missing entry means "not authenticated", never a store re-derivation.
// A hit slides the session's expiry back to the full TTL.
func (s *Service) IdentityFromToken(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	rec, err := s.sessions.Get(ctx, token)
	if err != nil {
		return 0, false, err
	}
	if rec == nil {
		return 0, false, nil
	}
	if _, err := s.sessions.Renew(ctx, token, s.ttl); err != nil {
		// Renewal is best effort; the identity is already established.
		s.logger.Warn("session renew", slog.Int64("user_id", rec.UserID), slog.Any("error", err))
	}
	return rec.UserID, true, nil
}

// LoginTime returns the login timestamp recorded for the user's current
// session in epoch milliseconds.
func (s *Service) LoginTime(ctx context.Context, userID int64) (int64, bool, error) {
	token, err := s.sessions.GetUserToken(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if token == "" {
		return 0, false, nil
	}
	rec, err := s.sessions.Get(ctx, token)
	if err != nil {
		return 0, false, err
	}
	if rec == nil {
		return 0, false, nil
	}
	return rec.LoginTimeMs, true, nil
}
