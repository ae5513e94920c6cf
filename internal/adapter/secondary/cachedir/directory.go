package cachedir

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// Directory is a cache-aside decorator for an InstitutionDirectory. Cache
// failures fall through to the wrapped directory; misses are not cached.
type Directory struct {
	next   secondary.InstitutionDirectory
	cache  secondary.Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ secondary.InstitutionDirectory = (*Directory)(nil)

// New wraps next with cache.
func New(next secondary.InstitutionDirectory, cache secondary.Cache, ttl time.Duration, logger *zap.Logger) *Directory {
	return &Directory{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("institution-cache"),
	}
}

func cacheKey(code string) string {
	return "institution:" + code
}

// Lookup returns the cached institution or loads and caches it.
func (d *Directory) Lookup(ctx context.Context, code string) (*entity.Institution, error) {
	key := cacheKey(code)

	data, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var inst entity.Institution
		if uerr := json.Unmarshal(data, &inst); uerr == nil {
			return &inst, nil
		}
		d.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		_ = d.cache.Delete(ctx, key)
	case !errors.Is(err, secondary.ErrCacheMiss):
		d.logger.Warn("institution cache read failed", zap.String("key", key), zap.Error(err))
	}

	inst, err := d.next.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if encoded, merr := json.Marshal(inst); merr == nil {
		if serr := d.cache.Set(ctx, key, encoded, d.ttl); serr != nil {
			d.logger.Warn("institution cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}

	return inst, nil
}

