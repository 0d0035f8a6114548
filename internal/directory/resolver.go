package directory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CachingDirectory decorates an ApproverDirectory with a TTL cache so that
// repeated resolutions for the same role/owner do not hit the upstream
// directory on every transition.
type CachingDirectory struct {
	upstream ApproverDirectory
	cache    *TTLCache
	logger   *zap.Logger
}

// NewCachingDirectory creates a caching decorator around upstream.
func NewCachingDirectory(upstream ApproverDirectory, ttl time.Duration, logger *zap.Logger) *CachingDirectory {
	return &CachingDirectory{
		upstream: upstream,
		cache:    NewTTLCache(ttl, 4096),
		logger:   logger,
	}
}

// ResolveApprover returns the cached approver id if fresh, otherwise asks the
// upstream directory and caches the answer. Lookup failures are not cached.
func (d *CachingDirectory) ResolveApprover(ctx context.Context, role, ownerID string) (string, error) {
	key := role + "/" + ownerID
	if approverID, ok := d.cache.Get(key); ok {
		return approverID, nil
	}

	approverID, err := d.upstream.ResolveApprover(ctx, role, ownerID)
	if err != nil {
		return "", err
	}

	d.cache.Set(key, approverID)
	d.logger.Debug("Resolved approver",
		zap.String("role", role),
		zap.String("owner_id", ownerID),
		zap.String("approver_id", approverID))
	return approverID, nil
}

// Invalidate drops a cached resolution, e.g. after an org change.
func (d *CachingDirectory) Invalidate(role, ownerID string) {
	d.cache.Delete(role + "/" + ownerID)
}
