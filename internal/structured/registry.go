package structured

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/structds/internal/log"
)

// RegistryProvider is the read-only view the Engine and CLI depend on.
type RegistryProvider interface {
	LookupEncoder(t reflect.Type, protocol, format string) (Encoder, error)
	LookupDecoder(t reflect.Type, protocol, format string) (Decoder, error)
	DefaultProtocol(t reflect.Type) string
	DefaultFormat(t reflect.Type) string
	Types() []reflect.Type
	TypeByName(name string) (reflect.Type, bool)
	Entries() []Entry
}

var _ RegistryProvider = (*Registry)(nil)

// Entry is one registered handler, as listed by Entries.
type Entry struct {
	Kind      HandlerKind
	Key       Key
	IsDefault bool
}

// table is the nested type -> protocol -> format mapping for one handler kind.
type table[H Handler] map[reflect.Type]map[string]map[string]H

func (t table[H]) has(k Key) bool {
	_, ok := t[k.Type][k.Protocol][k.Format]
	return ok
}

func (t table[H]) put(k Key, h H) {
	protocols, ok := t[k.Type]
	if !ok {
		protocols = make(map[string]map[string]H)
		t[k.Type] = protocols
	}
	formats, ok := protocols[k.Protocol]
	if !ok {
		formats = make(map[string]H)
		protocols[k.Protocol] = formats
	}
	formats[k.Format] = h
}

// lookup resolves k exactly, then the wildcard format for (type, protocol).
func (t table[H]) lookup(kind HandlerKind, k Key) (H, error) {
	var zero H
	protocols, ok := t[k.Type]
	if !ok {
		return zero, &HandlerNotFoundError{Kind: kind, Key: k, Level: LevelType}
	}
	formats, ok := protocols[k.Protocol]
	if !ok {
		return zero, &HandlerNotFoundError{Kind: kind, Key: k, Level: LevelProtocol}
	}
	if h, ok := formats[k.Format]; ok {
		return h, nil
	}
	if h, ok := formats[""]; ok {
		return h, nil
	}
	return zero, &HandlerNotFoundError{Kind: kind, Key: k, Level: LevelFormat}
}

// Registry holds encoder and decoder tables and per-type defaults.
// Mutation is serialized; once sealed the tables are immutable and reads
// take no lock.
type Registry struct {
	mu        sync.RWMutex
	sealed    atomic.Bool
	encoders  table[Encoder]
	decoders  table[Decoder]
	defProto  map[reflect.Type]string
	defFormat map[reflect.Type]string
	types     []reflect.Type
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders:  make(table[Encoder]),
		decoders:  make(table[Decoder]),
		defProto:  make(map[reflect.Type]string),
		defFormat: make(map[reflect.Type]string),
	}
}

// Register inserts h into the encoder table, the decoder table, or both,
// according to the capabilities it implements. A handler implementing both
// is inserted into both or neither. When makeDefault is true the type's
// default protocol and format are set to the handler's.
func (r *Registry) Register(h Handler, makeDefault bool) error {
	if h == nil || h.DataframeType() == nil {
		return fmt.Errorf("%w: handler has no dataframe type", ErrInvalidHandler)
	}
	enc, isEnc := h.(Encoder)
	dec, isDec := h.(Decoder)
	if !isEnc && !isDec {
		return fmt.Errorf("%w: %T implements neither Encoder nor Decoder", ErrInvalidHandler, h)
	}

	key := KeyOf(h)
	key.Protocol = strings.ToLower(key.Protocol)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if isEnc && r.encoders.has(key) {
		return &DuplicateHandlerError{Kind: KindEncoder, Key: key}
	}
	if isDec && r.decoders.has(key) {
		return &DuplicateHandlerError{Kind: KindDecoder, Key: key}
	}

	if _, known := r.encoders[key.Type]; !known {
		if _, known := r.decoders[key.Type]; !known {
			r.types = append(r.types, key.Type)
		}
	}
	if isEnc {
		r.encoders.put(key, enc)
	}
	if isDec {
		r.decoders.put(key, dec)
	}
	if makeDefault {
		r.defProto[key.Type] = key.Protocol
		r.defFormat[key.Type] = key.Format
	}

	log.Debug(log.CatRegistry, "Registered handler",
		"key", key.String(), "encoder", isEnc, "decoder", isDec, "default", makeDefault)
	return nil
}

// SetDefault overrides the default protocol and format for t.
func (r *Registry) SetDefault(t reflect.Type, protocol, format string) error {
	if t == nil {
		return fmt.Errorf("%w: nil dataframe type", ErrInvalidHandler)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	r.defProto[t] = strings.ToLower(protocol)
	r.defFormat[t] = format
	log.Debug(log.CatRegistry, "Set type default", "type", TypeName(t), "protocol", protocol, "format", format)
	return nil
}

// Seal makes the registry read-only. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return
	}
	r.sealed.Store(true)
	log.Info(log.CatRegistry, "Registry sealed", "types", len(r.types))
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) rlock() func() {
	if r.sealed.Load() {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// LookupEncoder returns the encoder registered at (t, protocol, format),
// falling back to the wildcard format for (t, protocol).
func (r *Registry) LookupEncoder(t reflect.Type, protocol, format string) (Encoder, error) {
	defer r.rlock()()
	return r.encoders.lookup(KindEncoder, Key{Type: t, Protocol: strings.ToLower(protocol), Format: format})
}

// LookupDecoder returns the decoder registered at (t, protocol, format),
// falling back to the wildcard format for (t, protocol).
func (r *Registry) LookupDecoder(t reflect.Type, protocol, format string) (Decoder, error) {
	defer r.rlock()()
	return r.decoders.lookup(KindDecoder, Key{Type: t, Protocol: strings.ToLower(protocol), Format: format})
}

// DefaultProtocol returns the default protocol recorded for t, or "".
func (r *Registry) DefaultProtocol(t reflect.Type) string {
	defer r.rlock()()
	return r.defProto[t]
}

// DefaultFormat returns the default format recorded for t, or "".
func (r *Registry) DefaultFormat(t reflect.Type) string {
	defer r.rlock()()
	return r.defFormat[t]
}

// Types returns every dataframe type with at least one handler, in
// registration order.
func (r *Registry) Types() []reflect.Type {
	defer r.rlock()()
	return slices.Clone(r.types)
}

// TypeByName finds a registered type by its reflect string form (e.g. "*frame.Frame").
func (r *Registry) TypeByName(name string) (reflect.Type, bool) {
	defer r.rlock()()
	for _, t := range r.types {
		if t.String() == name {
			return t, true
		}
	}
	return nil, false
}

// Entries lists every registered handler sorted by type, protocol, format and kind.
func (r *Registry) Entries() []Entry {
	defer r.rlock()()
	var out []Entry
	collect := func(kind HandlerKind, t reflect.Type, protocols map[string]map[string]struct{}) {
		for protocol, formats := range protocols {
			for format := range formats {
				out = append(out, Entry{
					Kind:      kind,
					Key:       Key{Type: t, Protocol: protocol, Format: format},
					IsDefault: r.defProto[t] == protocol && r.defFormat[t] == format,
				})
			}
		}
	}
	for t, protocols := range r.encoders {
		collect(KindEncoder, t, keysOf(protocols))
	}
	for t, protocols := range r.decoders {
		collect(KindDecoder, t, keysOf(protocols))
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(TypeName(a.Key.Type), TypeName(b.Key.Type)),
			cmp.Compare(a.Key.Protocol, b.Key.Protocol),
			cmp.Compare(a.Key.Format, b.Key.Format),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
	return out
}

func keysOf[H any](protocols map[string]map[string]H) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(protocols))
	for protocol, formats := range protocols {
		set := make(map[string]struct{}, len(formats))
		for format := range formats {
			set[format] = struct{}{}
		}
		out[protocol] = set
	}
	return out
}
