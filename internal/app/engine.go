package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/hookwire/internal/config"
	"github.com/dshills/hookwire/internal/discovery"
	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
	"github.com/dshills/hookwire/internal/lua"
)

// Engine owns one set of hookwire components.
type Engine struct {
	cfg    config.Config
	logger zerolog.Logger

	registry   *hook.Registry
	evaluator  *condition.Evaluator
	auth       *condition.JWTAuthenticator
	host       *lua.Host
	container  *hook.Container
	dispatcher *hook.Dispatcher
	discoverer *discovery.Discoverer

	mu        sync.Mutex
	watcher   *discovery.Watcher
	closers   []io.Closer
	started   bool
	closed    bool
	cancelRun context.CancelFunc
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *zerolog.Logger
	tracer     trace.Tracer
	catalog    *discovery.Catalog
	container  *hook.Container
	predicates map[string]condition.Predicate
	middleware map[string]discovery.MiddlewareFactory
	resolvers  []hook.Resolver
}

// WithLogger uses l instead of building a logger from the config.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithTracer sets the tracer used by the dispatcher.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithCatalog sets the catalog of in-process Go hook definitions.
func WithCatalog(c *discovery.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithContainer sets the container that resolves "Type@method" handlers.
func WithContainer(c *hook.Container) Option {
	return func(o *options) {
		o.container = c
	}
}

// WithPredicate registers a named predicate for custom conditions.
func WithPredicate(name string, p condition.Predicate) Option {
	return func(o *options) {
		o.predicates[name] = p
	}
}

// WithMiddleware registers a middleware factory for descriptors.
func WithMiddleware(name string, f discovery.MiddlewareFactory) Option {
	return func(o *options) {
		o.middleware[name] = f
	}
}

// WithResolver appends a resolver consulted after the container and the
// Lua host.
func WithResolver(r hook.Resolver) Option {
	return func(o *options) {
		o.resolvers = append(o.resolvers, r)
	}
}

// New builds an engine from cfg.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	o := options{
		predicates: make(map[string]condition.Predicate),
		middleware: make(map[string]discovery.MiddlewareFactory),
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{cfg: cfg}
	if err := newBootstrapper(e, o).bootstrap(); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() config.Config { return e.cfg }

// Logger returns the engine logger.
func (e *Engine) Logger() zerolog.Logger { return e.logger }

// Registry returns the hook registry.
func (e *Engine) Registry() *hook.Registry { return e.registry }

// Dispatcher returns the hook dispatcher.
func (e *Engine) Dispatcher() *hook.Dispatcher { return e.dispatcher }

// Discoverer returns the discoverer.
func (e *Engine) Discoverer() *discovery.Discoverer { return e.discoverer }

// Evaluator returns the condition evaluator.
func (e *Engine) Evaluator() *condition.Evaluator { return e.evaluator }

// Catalog returns the catalog of Go hook definitions.
func (e *Engine) Catalog() *discovery.Catalog { return e.discoverer.Catalog() }

// Container returns the container resolving "Type@method" handlers.
func (e *Engine) Container() *hook.Container { return e.container }

// LuaHost returns the host running Lua hook scripts.
func (e *Engine) LuaHost() *lua.Host { return e.host }

// Start runs the initial discovery and starts the watcher when enabled.
// The watcher stops when ctx is done or the engine is closed.
func (e *Engine) Start(ctx context.Context) (discovery.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return discovery.Report{}, ErrClosed
	}
	if e.started {
		return discovery.Report{}, ErrAlreadyStarted
	}
	e.started = true

	report := e.discoverer.Discover(ctx)

	if e.cfg.Discovery.Watch {
		runCtx, cancel := context.WithCancel(ctx)
		w, err := e.discoverer.Watch(runCtx,
			discovery.WithWatchDelay(e.cfg.WatchDelay()),
			discovery.OnReport(func(r discovery.Report) {
				e.logger.Info().Int("registered", len(r.Registered)).
					Int("failed", len(r.Failures)).Msg("hooks rediscovered")
			}),
		)
		if err != nil {
			cancel()
			return report, &InitError{Component: "watcher", Err: err}
		}
		e.watcher = w
		e.cancelRun = cancel
	}
	return report, nil
}

// Authenticate returns ctx carrying the caller described by token on top
// of the configured condition context.
func (e *Engine) Authenticate(ctx context.Context, token string) (context.Context, error) {
	if e.auth == nil {
		return ctx, ErrNoAuthenticator
	}
	state, err := e.auth.Authenticate(token)
	if err != nil {
		return ctx, err
	}
	c := e.evaluator.ContextFor(ctx)
	c.Auth = state
	return condition.WithContext(ctx, c), nil
}

// Close stops the watcher and releases scripts and log files.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	w, cancel := e.watcher, e.cancelRun
	e.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
	}
	if cancel != nil {
		cancel()
	}
	e.host.Close()
	for i := len(e.closers) - 1; i >= 0; i-- {
		if cerr := e.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
