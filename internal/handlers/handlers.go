// Package handlers wires the bundled *frame.Frame encoders and decoders into
// a registry.
package handlers

import (
	"github.com/zjrosen/structds/internal/handlers/csv"
	"github.com/zjrosen/structds/internal/handlers/parquet"
	"github.com/zjrosen/structds/internal/handlers/sqlite"
	"github.com/zjrosen/structds/internal/log"
	"github.com/zjrosen/structds/internal/storage"
	"github.com/zjrosen/structds/internal/structured"
)

// Options select and tune the bundled handlers.
type Options struct {
	Parquet bool
	CSV     bool
	SQLite  bool

	// ChunkRows is the parquet row group size and the streaming chunk size.
	ChunkRows int
	// Stream makes every decoder return chunk streams.
	Stream bool
	// SQLiteDir holds the database for generated sqlite URIs.
	SQLiteDir string
}

// DefaultOptions enables every handler.
func DefaultOptions() Options {
	return Options{Parquet: true, CSV: true, SQLite: true, ChunkRows: parquet.DefaultRowGroupRows, SQLiteDir: "."}
}

// Deps are the collaborators the handlers need.
type Deps struct {
	// Router supplies the byte stores; parquet and csv handlers are
	// registered once per routed protocol.
	Router  *storage.Router
	Options Options
}

// Register adds the enabled handlers to reg. The first handler registered
// sets the *frame.Frame default: parquet over the first routed protocol
// when parquet is enabled.
func Register(reg *structured.Registry, deps Deps) error {
	opts := deps.Options
	first := true
	add := func(h structured.Handler) error {
		makeDefault := first
		first = false
		return reg.Register(h, makeDefault)
	}

	var protocols []string
	if deps.Router != nil {
		protocols = deps.Router.Protocols()
	}
	for _, protocol := range protocols {
		store, err := deps.Router.For(protocol)
		if err != nil {
			return err
		}
		if opts.Parquet {
			po := parquet.Options{RowGroupRows: opts.ChunkRows, Stream: opts.Stream}
			if err := add(parquet.NewEncoder(store, po)); err != nil {
				return err
			}
			if err := add(parquet.NewDecoder(store, po)); err != nil {
				return err
			}
		}
		if opts.CSV {
			if err := add(csv.NewEncoder(store)); err != nil {
				return err
			}
			if err := add(csv.NewDecoder(store, csv.Options{ChunkRows: opts.ChunkRows, Stream: opts.Stream})); err != nil {
				return err
			}
		}
	}
	if opts.SQLite {
		so := sqlite.Options{Dir: opts.SQLiteDir, ChunkRows: opts.ChunkRows, Stream: opts.Stream}
		if err := add(sqlite.NewEncoder(so)); err != nil {
			return err
		}
		if err := add(sqlite.NewDecoder(so)); err != nil {
			return err
		}
	}

	log.Info(log.CatRegistry, "Registered bundled handlers",
		"protocols", protocols, "parquet", opts.Parquet, "csv", opts.CSV, "sqlite", opts.SQLite)
	return nil
}

// Registrar adapts Register for a structured.Builder.
func Registrar(deps Deps) structured.Registrar {
	return structured.RegistrarFunc(func(reg *structured.Registry) error {
		return Register(reg, deps)
	})
}
