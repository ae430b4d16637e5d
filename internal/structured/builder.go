package structured

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zjrosen/structds/internal/log"
)

// Registrar contributes handlers to a registry during the build step.
type Registrar interface {
	RegisterHandlers(r *Registry) error
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(r *Registry) error

func (f RegistrarFunc) RegisterHandlers(r *Registry) error { return f(r) }

// DefaultOverride pins a type's default protocol and format after all
// registrars have run.
type DefaultOverride struct {
	Type     reflect.Type
	Protocol string
	Format   string
}

// Builder performs the one-time "build registry" step: every registrar runs
// exactly once, overrides are applied, and the registry is sealed. Build is
// idempotent and safe to call from multiple goroutines.
type Builder struct {
	registrars []Registrar
	overrides  []DefaultOverride

	once sync.Once
	reg  *Registry
	err  error
}

// NewBuilder creates a builder for the given registrars.
func NewBuilder(registrars ...Registrar) *Builder {
	return &Builder{registrars: registrars}
}

// Add appends a registrar. It has no effect after Build.
func (b *Builder) Add(r Registrar) *Builder {
	b.registrars = append(b.registrars, r)
	return b
}

// Override pins the default for t. Applied after every registrar.
func (b *Builder) Override(t reflect.Type, protocol, format string) *Builder {
	b.overrides = append(b.overrides, DefaultOverride{Type: t, Protocol: protocol, Format: format})
	return b
}

// Build runs the registrars once and returns the sealed registry. Later
// calls return the same registry and error.
func (b *Builder) Build() (*Registry, error) {
	b.once.Do(func() {
		b.reg, b.err = b.build()
	})
	return b.reg, b.err
}

func (b *Builder) build() (*Registry, error) {
	reg := NewRegistry()
	for i, r := range b.registrars {
		if err := r.RegisterHandlers(reg); err != nil {
			log.ErrorErr(log.CatRegistry, "Registrar failed", err, "index", i)
			return nil, fmt.Errorf("registrar %d: %w", i, err)
		}
	}
	for _, o := range b.overrides {
		if err := reg.SetDefault(o.Type, o.Protocol, o.Format); err != nil {
			return nil, fmt.Errorf("default override for %s: %w", TypeName(o.Type), err)
		}
	}
	reg.Seal()
	return reg, nil
}
