package user

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"messenger/internal/cache"
)

// CachedDirectory layers a redis profile cache over another Directory.
// Only profile reads are cached; existence checks and writes go straight
// through so admission decisions never act on stale data.
type CachedDirectory struct {
	inner Directory
	cache *cache.RedisCache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedDirectory(inner Directory, c *cache.RedisCache, ttl time.Duration, log *zap.Logger) *CachedDirectory {
	return &CachedDirectory{inner: inner, cache: c, ttl: ttl, log: log}
}

func profileKey(id string) string { return "profile:" + id }

func (d *CachedDirectory) Exists(ctx context.Context, id string) (bool, error) {
	return d.inner.Exists(ctx, id)
}

func (d *CachedDirectory) Profile(ctx context.Context, id string) (*Profile, error) {
	if raw, err := d.cache.Get(ctx, profileKey(id)); err == nil {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	} else if !cache.IsMiss(err) {
		d.log.Warn("profile cache read failed", zap.String("user", id), zap.Error(err))
	}

	p, err := d.inner.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, *p)
	return p, nil
}

func (d *CachedDirectory) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	var missing []string
	for _, id := range ids {
		raw, err := d.cache.Get(ctx, profileKey(id))
		if err != nil {
			if !cache.IsMiss(err) {
				d.log.Warn("profile cache read failed", zap.String("user", id), zap.Error(err))
			}
			missing = append(missing, id)
			continue
		}
		var p Profile
		if json.Unmarshal([]byte(raw), &p) != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = p
	}

	if len(missing) > 0 {
		fetched, err := d.inner.Profiles(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, p := range fetched {
			out[id] = p
			d.store(ctx, p)
		}
	}
	return out, nil
}

func (d *CachedDirectory) AllIDs(ctx context.Context) ([]string, error) {
	return d.inner.AllIDs(ctx)
}

func (d *CachedDirectory) IDsByRole(ctx context.Context, roles ...string) ([]string, error) {
	return d.inner.IDsByRole(ctx, roles...)
}

func (d *CachedDirectory) TouchLastActive(ctx context.Context, id string) error {
	return d.inner.TouchLastActive(ctx, id)
}

func (d *CachedDirectory) store(ctx context.Context, p Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, profileKey(p.ID), raw, d.ttl); err != nil {
		d.log.Warn("profile cache write failed", zap.String("user", p.ID), zap.Error(err))
	}
}
