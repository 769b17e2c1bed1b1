// Package bridge is the embedding API for hive. A host opens a Bridge from a
// Config, passes each textual call with a caller-owned output buffer, and
// stops when a call reports a verified shutdown.
//
//	b, err := bridge.Open(ctx, cfg)
//	...
//	out := make([]byte, b.Capacity())
//	o := b.Call(ctx, `["CHILD",307]`, out)
//	reply := string(out[:o.Written])
package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/clock"
	"github.com/mesh-intelligence/hive/internal/dispatch"
	"github.com/mesh-intelligence/hive/internal/hive"
	"github.com/mesh-intelligence/hive/internal/store"
	"github.com/mesh-intelligence/hive/pkg/types"
)

// Version is the hive release.
const Version = "0.1.0"

// Outcome reports what a call wrote and whether the host should stop.
type Outcome = dispatch.Outcome

// Kind names the reason a call was dropped.
type Kind = dispatch.Kind

// KindOf classifies the error of a dropped call.
func KindOf(err error) Kind { return dispatch.KindOf(err) }

// Option configures Open.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger sets the logger passed to every component. The default
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Bridge is an attached backend plus its dispatcher.
type Bridge struct {
	cfg        types.Config
	backend    *store.Backend
	dispatcher *dispatch.Dispatcher
}

// Open validates cfg, attaches the database, and builds the dispatch table.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Bridge, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("open bridge: %w", err)
	}

	backend := store.NewBackend(o.log.With().Str("component", "store").Logger())
	if err := backend.Attach(ctx, cfg); err != nil {
		return nil, fmt.Errorf("open bridge: %w", err)
	}

	srcLog := o.log.With().Str("component", "source").Logger()
	app := hive.New(
		store.NewObjectSource(backend, srcLog),
		store.NewCustomSource(backend, srcLog),
		clock.New(cfg.Time, o.log.With().Str("component", "clock").Logger()),
		o.log.With().Str("component", "hive").Logger(),
	)
	table := dispatch.NewTable()
	if err := app.Register(table); err != nil {
		_ = backend.Detach()
		return nil, fmt.Errorf("open bridge: %w", err)
	}

	dopts := []dispatch.Option{dispatch.WithLogger(o.log.With().Str("component", "dispatch").Logger())}
	if cfg.Bridge.FailureReply {
		dopts = append(dopts, dispatch.WithFailureReply())
	}
	return &Bridge{
		cfg:        cfg,
		backend:    backend,
		dispatcher: dispatch.New(table, dopts...),
	}, nil
}

// Capacity is the configured output buffer size.
func (b *Bridge) Capacity() int { return b.cfg.Bridge.OutputCapacity }

// Call runs one call, writing at most len(out)-1 bytes and a NUL into out.
func (b *Bridge) Call(ctx context.Context, raw string, out []byte) Outcome {
	return b.dispatcher.Call(ctx, raw, out)
}

// CallString runs one call against a fresh buffer of Capacity bytes and
// returns the reply text, empty when the call was dropped.
func (b *Bridge) CallString(ctx context.Context, raw string) (string, Outcome) {
	out := make([]byte, b.Capacity())
	o := b.dispatcher.Call(ctx, raw, out)
	return string(out[:o.Written]), o
}

// Close detaches the database. It is safe to call more than once.
func (b *Bridge) Close() error {
	return b.backend.Detach()
}
