package authz

import (
	"context"
	"log/slog"

	"github.com/dawnmoon/charon/internal/observability"
	"github.com/dawnmoon/charon/internal/session"
)

// Checker evaluates permission requirements against a user's cached
// permission set. On a cache miss (no token index entry or no record) it
// falls back to a live resolve against the credential store rather than
// denying outright; the fallback result is not written back to the cache.
type Checker struct {
	sessions *session.Store
	resolver *Resolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewChecker constructs a Checker.
func NewChecker(sessions *session.Store, resolver *Resolver, logger *slog.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{sessions: sessions, resolver: resolver, logger: logger, metrics: metrics}
}

// Check reports whether the user satisfies the requirement. A user with
// no session and no grants in the store simply has no permissions; that
// is not an error at this layer.
func (c *Checker) Check(ctx context.Context, userID int64, req Requirement) (bool, error) {
	if len(req) == 0 {
		return true, nil
	}
	granted, err := c.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := req.SatisfiedBy(granted)
	c.metrics.ObservePermissionCheck(allowed)
	if !allowed {
		c.logger.Debug("permission denied",
			slog.Int64("user_id", userID),
			slog.Int("clauses", len(req)))
	}
	return allowed, nil
}

// Permissions returns the user's permission codes, preferring the cached
// session record and falling back to the credential store.
func (c *Checker) Permissions(ctx context.Context, userID int64) ([]string, error) {
	token, err := c.sessions.GetUserToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token != "" {
		rec, err := c.sessions.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec.Permissions, nil
		}
	}
	c.logger.Warn("session cache miss, resolving permissions from store", slog.Int64("user_id", userID))
	return c.resolver.Resolve(ctx, userID)
}
