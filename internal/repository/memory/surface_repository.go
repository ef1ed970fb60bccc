package memory

import (
	"sync"
	"time"

	"memory-dashboard-be/internal/service"

	"github.com/patrickmn/go-cache"
)

// SurfaceRepository caches one chat service per (user, surface) pair. Idle
// surfaces expire; the next request simply builds a fresh empty conversation,
// which matches how the dashboard reopens its chat panel.
type SurfaceRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSurfaceRepository(ttl time.Duration) *SurfaceRepository {
	c := cache.New(ttl, 10*time.Minute)
	return &SurfaceRepository{
		cache: c,
	}
}

// GetOrCreate returns the cached service for key, building it once when
// absent. Creation is serialized so two concurrent requests for a new surface
// share one conversation state.
func (r *SurfaceRepository) GetOrCreate(key string, create func() service.IChatService) service.IChatService {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(key); found {
		svc := x.(service.IChatService)
		r.cache.Set(key, svc, cache.DefaultExpiration) // sliding expiration
		return svc
	}

	svc := create()
	r.cache.Set(key, svc, cache.DefaultExpiration)
	return svc
}

func (r *SurfaceRepository) Delete(key string) {
	r.cache.Delete(key)
}
