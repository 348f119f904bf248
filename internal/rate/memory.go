package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: fixed window sobre go-cache, para despliegues de una sola
// instancia (el default). Mismo algoritmo que RedisLimiter: la clave incluye
// el inicio de la ventana y el contador expira solo.
type MemoryLimiter struct {
	store  *gocache.Cache
	prefix string
	max    int64
	window time.Duration
}

func NewMemoryLimiter(prefix string, max int, window time.Duration) *MemoryLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	// cleanup corre al doble de la ventana; las entradas viejas no molestan
	// porque la clave cambia por ventana.
	return &MemoryLimiter{
		store:  gocache.New(window, 2*window),
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	winEnd := winStart.Add(l.window)
	cacheKey := fmt.Sprintf("%s%s:%d", l.prefix, sanitizeKey(key), winStart.Unix())

	hits := l.bump(cacheKey, winEnd.Sub(now))

	allowed := hits <= l.max
	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   winEnd.Sub(now),
	}
	if !allowed {
		res.RetryAfter = winEnd.Sub(now)
	}
	return res, nil
}

// bump incrementa el contador de la ventana, creándolo en el primer hit.
// Add e IncrementInt64 son atómicos en go-cache; si la entrada expira entre
// ambos, reintenta el Add.
func (l *MemoryLimiter) bump(cacheKey string, ttl time.Duration) int64 {
	for {
		if err := l.store.Add(cacheKey, int64(1), ttl); err == nil {
			return 1
		}
		if hits, err := l.store.IncrementInt64(cacheKey, 1); err == nil {
			return hits
		}
	}
}
