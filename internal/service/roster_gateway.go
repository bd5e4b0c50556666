package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// RosterCacheKey holds the JSON snapshot of the whole roster.
const RosterCacheKey = "roster:snapshot"

// RosterStore is the persistence boundary for the student roster.
type RosterStore interface {
	FetchRoster(ctx context.Context) ([]models.Student, error)
	SaveRoster(ctx context.Context, students []models.Student) error
}

// RosterGateway fronts a RosterStore with a read-through snapshot cache.
//
// Every committed save bumps the gateway generation before the snapshot is dropped. A
// load only fills the cache when the generation it started under is still current, so a
// roster read before a save can never be cached after it. When the snapshot cannot be
// dropped the gateway reads from the store until a fresh fill succeeds.
type RosterGateway struct {
	store   RosterStore
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	loads   singleflight.Group

	mu         sync.Mutex
	generation uint64
	bypass     bool
}

// NewRosterGateway wires the store with an optional cache.
func NewRosterGateway(store RosterStore, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *RosterGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterGateway{store: store, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// FetchRoster returns every student, from cache when possible. Concurrent cold
// reads within one generation share a single database fetch.
func (g *RosterGateway) FetchRoster(ctx context.Context) ([]models.Student, error) {
	if !g.cache.Enabled() {
		return g.fetchFromStore(ctx)
	}

	generation, bypass := g.state()
	if !bypass {
		var cached []models.Student
		if hit, _ := g.cache.Get(ctx, RosterCacheKey, &cached); hit {
			g.metrics.SetRosterSize(len(cached))
			return cached, nil
		}
	}

	value, err, shared := g.loads.Do(strconv.FormatUint(generation, 10), func() (interface{}, error) {
		students, err := g.fetchFromStore(ctx)
		if err != nil {
			return nil, err
		}
		g.fill(ctx, generation, students)
		return students, nil
	})
	if err != nil {
		return nil, err
	}
	students := value.([]models.Student)
	if shared {
		return cloneRoster(students)
	}
	return students, nil
}

// SaveRoster persists the whole roster and invalidates the snapshot.
func (g *RosterGateway) SaveRoster(ctx context.Context, students []models.Student) error {
	start := time.Now()
	err := g.store.SaveRoster(ctx, students)
	g.metrics.ObserveDBQuery("roster_save", time.Since(start))
	if err != nil {
		return err
	}
	g.metrics.SetRosterSize(len(students))
	if !g.cache.Enabled() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	if err := g.cache.Delete(ctx, RosterCacheKey); err != nil {
		g.bypass = true
		g.logger.Warn("roster snapshot invalidation failed, reading from store until refilled", zap.Error(err))
		return nil
	}
	g.bypass = false
	return nil
}

func (g *RosterGateway) state() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation, g.bypass
}

// fill caches students loaded under generation unless a save has committed since.
func (g *RosterGateway) fill(ctx context.Context, generation uint64, students []models.Student) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if generation != g.generation {
		g.logger.Debug("roster snapshot fill skipped, roster changed during load")
		return
	}
	if err := g.cache.Set(ctx, RosterCacheKey, students, g.ttl); err != nil {
		return
	}
	g.bypass = false
}

func (g *RosterGateway) fetchFromStore(ctx context.Context) ([]models.Student, error) {
	start := time.Now()
	students, err := g.store.FetchRoster(ctx)
	g.metrics.ObserveDBQuery("roster_fetch", time.Since(start))
	if err != nil {
		return nil, err
	}
	g.metrics.SetRosterSize(len(students))
	return students, nil
}

// cloneRoster gives each caller of a shared load its own copy, the same shape a cache
// hit would produce.
func cloneRoster(students []models.Student) ([]models.Student, error) {
	raw, err := json.Marshal(students)
	if err != nil {
		return nil, fmt.Errorf("copy roster: %w", err)
	}
	var out []models.Student
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy roster: %w", err)
	}
	return out, nil
}

func findStudent(students []models.Student, id string) int {
	for i := range students {
		if students[i].ID == id {
			return i
		}
	}
	return -1
}
