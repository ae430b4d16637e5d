// Package storage moves serialized dataset bytes to and from URI-addressed
// locations. Only handlers talk to storage; the dispatcher never does.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrUnknownProtocol = errors.New("no store for protocol")
	ErrInvalidURI      = errors.New("invalid uri for store")
)

// Error is the structured error returned by every store.
type Error struct {
	Op  string
	URI string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[storage] %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op, uri string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, URI: uri, Err: err}
}

// Store reads and writes whole objects by URI.
type Store interface {
	Protocol() string
	Put(ctx context.Context, uri string, data []byte) error
	Get(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
	Exists(ctx context.Context, uri string) (bool, error)
	// NewURI returns a fresh, unused location for an object named name.
	NewURI(name string) string
}

// randomName prefixes name with a random id.
func randomName(name string) string {
	id := uuid.NewString()
	if name == "" {
		return id
	}
	return id + "-" + name
}

// Router selects a store by protocol.
type Router struct {
	stores map[string]Store
}

// NewRouter indexes stores by their protocol. Later stores win on conflict.
func NewRouter(stores ...Store) *Router {
	r := &Router{stores: make(map[string]Store, len(stores))}
	for _, s := range stores {
		r.stores[strings.ToLower(s.Protocol())] = s
	}
	return r
}

// For returns the store serving protocol.
func (r *Router) For(protocol string) (Store, error) {
	s, ok := r.stores[strings.ToLower(protocol)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
	}
	return s, nil
}

// Protocols lists the routed protocols in sorted order.
func (r *Router) Protocols() []string {
	out := make([]string, 0, len(r.stores))
	for p := range r.stores {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
