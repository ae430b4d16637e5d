package cmd

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/zjrosen/structds/internal/config"
	"github.com/zjrosen/structds/internal/flags"
	"github.com/zjrosen/structds/internal/frame"
	"github.com/zjrosen/structds/internal/handlers"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/presentation"
	"github.com/zjrosen/structds/internal/pubsub"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
	"github.com/zjrosen/structds/internal/tracing"
)

// dataframeTypes are the types the bundled handlers serve, by reflect name.
var dataframeTypes = map[string]reflect.Type{
	frame.Type.String(): frame.Type,
}

type appOptions struct {
	// stream forces decoders to return chunk streams.
	stream bool
}

// app holds the wired collaborators for one command invocation.
type app struct {
	engine   *structured.Engine
	registry *structured.Registry
	router   *storage.Router
	flags    *flags.Registry
	tracing  *tracing.Provider
	events   *pubsub.Broker[structured.Event]
}

func newApp(c config.Config, opts appOptions) (*app, error) {
	fl := flags.New(c.Flags)

	local, err := storage.NewLocal(c.Storage.LocalRoot, 0o750)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	router := storage.NewRouter(local, storage.NewMemory(c.Storage.MemoryTTL))

	builder := structured.NewBuilder(handlers.Registrar(handlers.Deps{
		Router: router,
		Options: handlers.Options{
			Parquet:   c.Handlers.Parquet,
			CSV:       c.Handlers.CSV,
			SQLite:    c.Handlers.SQLite,
			ChunkRows: c.Handlers.ChunkRows,
			Stream:    opts.stream || fl.Enabled(flags.FlagStreamDecode),
			SQLiteDir: c.Handlers.SQLiteDir,
		},
	}))
	for _, d := range c.TypeDefaults {
		t, err := lookupType(d.Type)
		if err != nil {
			return nil, fmt.Errorf("type_defaults: %w", err)
		}
		builder.Override(t, d.Protocol, d.Format)
	}
	reg, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}

	tc := tracing.Config{
		Enabled:      c.Tracing.Enabled,
		Exporter:     c.Tracing.Exporter,
		FilePath:     c.Tracing.FilePath,
		OTLPEndpoint: c.Tracing.OTLPEndpoint,
		SampleRate:   c.Tracing.SampleRate,
	}
	if tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	events := pubsub.NewBroker[structured.Event]()
	engine := structured.NewEngine(reg,
		structured.WithTracer(provider.Tracer()),
		structured.WithEvents(events),
		structured.WithStrictScheme(fl.Enabled(flags.FlagStrictURIScheme)),
	)

	log.Debug(log.CatConfig, "App ready", "protocols", router.Protocols(), "flags", fl.All())
	return &app{
		engine:   engine,
		registry: reg,
		router:   router,
		flags:    fl,
		tracing:  provider,
		events:   events,
	}, nil
}

// Close stops event delivery and flushes pending spans.
func (a *app) Close(ctx context.Context) error {
	a.events.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return a.tracing.Shutdown(ctx)
}

// mirrorEvents prints every dispatch event until ctx ends or the app closes.
// Returns a channel closed when printing stops.
func (a *app) mirrorEvents(ctx context.Context, f *presentation.Formatter) <-chan struct{} {
	done := make(chan struct{})
	sub := a.events.Subscribe(ctx)
	go func() {
		defer close(done)
		for ev := range sub {
			_ = f.FormatEvent(presentation.FromEvent(ev.Payload))
		}
	}()
	return done
}

// resolveType finds a registered dataframe type by name.
func (a *app) resolveType(name string) (reflect.Type, error) {
	if t, ok := a.registry.TypeByName(name); ok {
		return t, nil
	}
	names := make([]string, 0)
	for _, t := range a.registry.Types() {
		names = append(names, t.String())
	}
	return nil, fmt.Errorf("unknown dataframe type %q (registered: %s)", name, strings.Join(names, ", "))
}

var errUnknownType = errors.New("unknown dataframe type")

func lookupType(name string) (reflect.Type, error) {
	if t, ok := dataframeTypes[name]; ok {
		return t, nil
	}
	known := make([]string, 0, len(dataframeTypes))
	for n := range dataframeTypes {
		known = append(known, n)
	}
	slices.Sort(known)
	return nil, fmt.Errorf("%w %q (known: %s)", errUnknownType, name, strings.Join(known, ", "))
}
