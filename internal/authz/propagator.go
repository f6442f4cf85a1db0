package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dawnmoon/charon/internal/observability"
	"github.com/dawnmoon/charon/internal/rbac/credstore"
	"github.com/dawnmoon/charon/internal/session"
)

// refreshConcurrency bounds the per-role fan-out.
const refreshConcurrency = 8

// Propagator rewrites cached permission sets after a role/permission
// graph mutation. It never extends a session's life: the rewritten record
// keeps the token's remaining TTL.
type Propagator struct {
	sessions   *session.Store
	resolver   *Resolver
	creds      credstore.Store
	defaultTTL time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewPropagator constructs a Propagator. defaultTTL is used when the
// token's remaining TTL cannot be determined.
func NewPropagator(sessions *session.Store, resolver *Resolver, creds credstore.Store, defaultTTL time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Propagator {
	return &Propagator{
		sessions:   sessions,
		resolver:   resolver,
		creds:      creds,
		defaultTTL: defaultTTL,
		logger:     logger,
		metrics:    metrics,
	}
}

// RefreshUser re-resolves the user's roles and permissions and rewrites
// the cached record in place, preserving identity, login time and the
// remaining TTL. A user with no live session is a no-op.
func (p *Propagator) RefreshUser(ctx context.Context, userID int64) error {
	token, err := p.sessions.GetUserToken(ctx, userID)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	rec, err := p.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	roles, err := p.resolver.ResolveRoles(ctx, userID)
	if err != nil {
		return err
	}
	perms, err := p.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	rec.Roles = roles
	rec.Permissions = perms

	ttl, ok, err := p.sessions.RemainingTTL(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		ttl = p.defaultTTL
	}
	if err := p.sessions.Put(ctx, token, rec, ttl); err != nil {
		p.metrics.ObserveRefresh(false)
		return fmt.Errorf("authz: rewrite session for user %d: %w", userID, err)
	}
	p.metrics.ObserveRefresh(true)
	p.logger.Info("session permissions refreshed",
		slog.Int64("user_id", userID),
		slog.Int("permissions", len(perms)),
		slog.Duration("ttl", ttl))
	return nil
}

// RefreshUsersByRole refreshes every user currently assigned to the role.
// Each user's refresh is independent: a failure is logged and the rest
// proceed.
func (p *Propagator) RefreshUsersByRole(ctx context.Context, roleID int64) error {
	userIDs, err := p.creds.FindUsersByRoleID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("authz: users for role %d: %w", roleID, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if err := p.RefreshUser(ctx, userID); err != nil {
				p.logger.Warn("refresh user failed",
					slog.Int64("user_id", userID),
					slog.Int64("role_id", roleID),
					slog.Any("error", err))
			}
			// Best effort: never abort the remaining refreshes.
			return nil
		})
	}
	_ = g.Wait()
	p.logger.Info("role refresh fan-out complete",
		slog.Int64("role_id", roleID),
		slog.Int("users", len(userIDs)))
	return nil
}
