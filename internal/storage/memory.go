package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/structds/internal/cachemanager"
	"github.com/zjrosen/structds/internal/log"
)

// ProtocolMemory is the protocol served by Memory.
const ProtocolMemory = "mem"

// Memory keeps objects in an expiring in-process cache. Reads slide the
// expiration forward.
type Memory struct {
	cache cachemanager.CacheManager[string, []byte]
	ttl   time.Duration
}

// NewMemory creates a memory store. A zero ttl keeps objects until deleted.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = cachemanager.NoExpiration
	}
	return &Memory{
		cache: cachemanager.NewInMemoryCacheManager[string, []byte]("memory-store", ttl, cachemanager.DefaultCleanupInterval),
		ttl:   ttl,
	}
}

func (m *Memory) Protocol() string { return ProtocolMemory }

func checkMemURI(uri string) error {
	if !strings.HasPrefix(uri, ProtocolMemory+"://") || len(uri) == len(ProtocolMemory+"://") {
		return fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return nil
}

func (m *Memory) Put(ctx context.Context, uri string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return wrap("mem.put", uri, err)
	}
	if err := checkMemURI(uri); err != nil {
		return wrap("mem.put", uri, err)
	}
	m.cache.Set(ctx, uri, slices.Clone(data), m.ttl)
	log.Debug(log.CatStorage, "Stored object in memory", "uri", uri, "bytes", len(data))
	return nil
}

func (m *Memory) Get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("mem.get", uri, err)
	}
	if err := checkMemURI(uri); err != nil {
		return nil, wrap("mem.get", uri, err)
	}
	data, ok := m.cache.GetWithRefresh(ctx, uri, m.ttl)
	if !ok {
		return nil, wrap("mem.get", uri, ErrNotFound)
	}
	return slices.Clone(data), nil
}

func (m *Memory) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return wrap("mem.delete", uri, err)
	}
	return wrap("mem.delete", uri, m.cache.Delete(ctx, uri))
}

func (m *Memory) Exists(ctx context.Context, uri string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("mem.exists", uri, err)
	}
	_, ok := m.cache.Get(ctx, uri)
	return ok, nil
}

// List returns the stored URIs in sorted order.
func (m *Memory) List(ctx context.Context) []string {
	return m.cache.Keys(ctx)
}

// NewURI returns mem://<uuid>/<name>.
func (m *Memory) NewURI(name string) string {
	if name == "" {
		name = "data"
	}
	return ProtocolMemory + "://" + randomName("") + "/" + name
}
