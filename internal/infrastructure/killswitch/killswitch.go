package killswitch

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Capability identifies a switchable slice of the service. CapabilityGlobal
// overrides every other capability when engaged.
type Capability string

const (
	CapabilityGlobal  Capability = "global"
	CapabilityChat    Capability = "chat"
	CapabilityActions Capability = "actions"
	CapabilityOCR     Capability = "ocr"
)

// Capabilities lists every known capability, global first.
func Capabilities() []Capability {
	return []Capability{CapabilityGlobal, CapabilityChat, CapabilityActions, CapabilityOCR}
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityGlobal, CapabilityChat, CapabilityActions, CapabilityOCR:
		return true
	}
	return false
}

// Store persists switch state. Implementations must make Set visible to
// every replica within the gate's cache TTL.
type Store interface {
	Set(ctx context.Context, capability Capability, engaged bool) error
	Get(ctx context.Context, capability Capability) (bool, error)
}

// MemoryStore keeps switch state in-process.
type MemoryStore struct {
	mu      sync.RWMutex
	engaged map[Capability]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{engaged: make(map[Capability]bool)}
}

func (s *MemoryStore) Set(ctx context.Context, capability Capability, engaged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engaged[capability] = engaged
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, capability Capability) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engaged[capability], nil
}

// RedisStore shares switch state across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "killswitch:"}
}

func (s *RedisStore) Set(ctx context.Context, capability Capability, engaged bool) error {
	value := "0"
	if engaged {
		value = "1"
	}
	return s.client.Set(ctx, s.prefix+string(capability), value, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, capability Capability) (bool, error) {
	value, err := s.client.Get(ctx, s.prefix+string(capability)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

type cachedState struct {
	engaged   bool
	fetchedAt time.Time
}

// Gate answers the hot-path "is this capability blocked?" question. Reads go
// through a short-lived local cache so toggles propagate within cacheTTL
// without putting the store on every request. Store errors fail open: an
// unreachable store must not take the whole service down with it.
type Gate struct {
	store    Store
	cacheTTL time.Duration
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[Capability]cachedState
	now   func() time.Time
}

// NewGate creates a gate over store. cacheTTL bounds propagation delay.
func NewGate(store Store, cacheTTL time.Duration, log zerolog.Logger) *Gate {
	return &Gate{
		store:    store,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "killswitch").Logger(),
		cache:    make(map[Capability]cachedState),
		now:      time.Now,
	}
}

// Blocked reports whether capability is currently blocked, either directly
// or by the global switch.
func (g *Gate) Blocked(ctx context.Context, capability Capability) (bool, Capability) {
	if g.engaged(ctx, CapabilityGlobal) {
		return true, CapabilityGlobal
	}
	if capability != CapabilityGlobal && g.engaged(ctx, capability) {
		return true, capability
	}
	return false, ""
}

func (g *Gate) engaged(ctx context.Context, capability Capability) bool {
	g.mu.Lock()
	state, ok := g.cache[capability]
	if ok && g.now().Sub(state.fetchedAt) < g.cacheTTL {
		g.mu.Unlock()
		return state.engaged
	}
	g.mu.Unlock()

	engaged, err := g.store.Get(ctx, capability)
	if err != nil {
		g.log.Error().Err(err).Str("capability", string(capability)).Msg("kill switch read failed, failing open")
		return ok && state.engaged
	}

	g.mu.Lock()
	g.cache[capability] = cachedState{engaged: engaged, fetchedAt: g.now()}
	g.mu.Unlock()
	return engaged
}

// Toggle engages or releases a capability switch and drops the local cache
// entry so this replica sees the change immediately.
func (g *Gate) Toggle(ctx context.Context, capability Capability, engaged bool) error {
	if err := g.store.Set(ctx, capability, engaged); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.cache, capability)
	g.mu.Unlock()
	g.log.Info().Str("capability", string(capability)).Bool("engaged", engaged).Msg("kill switch toggled")
	return nil
}

// State snapshots every capability straight from the store, bypassing the
// cache. Used by the admin surface.
func (g *Gate) State(ctx context.Context) (map[Capability]bool, error) {
	out := make(map[Capability]bool, len(Capabilities()))
	for _, capability := range Capabilities() {
		engaged, err := g.store.Get(ctx, capability)
		if err != nil {
			return nil, err
		}
		out[capability] = engaged
	}
	return out, nil
}
