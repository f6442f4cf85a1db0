package rbac

import "github.com/dawnmoon/charon/internal/rbac/credstore"

// Store is the credential-store query contract consumed by the session
// core: user lookups plus graph traversal from users to roles to
// permissions. Implementations return zero values, not errors, when
// nothing matches.
type Store = credstore.Store

// Refresher rewrites cached permission sets after a graph mutation. It is
// implemented by the authz propagator and injected at wiring time.
type Refresher = credstore.Refresher
