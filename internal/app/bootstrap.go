package app

import (
	"github.com/dshills/hookwire/internal/discovery"
	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
	"github.com/dshills/hookwire/internal/logging"
	"github.com/dshills/hookwire/internal/lua"
)

// bootstrapper builds engine components with cleanup on failure.
type bootstrapper struct {
	e         *Engine
	opts      options
	initOrder []string
}

func newBootstrapper(e *Engine, opts options) *bootstrapper {
	return &bootstrapper{e: e, opts: opts, initOrder: make([]string, 0, 7)}
}

// bootstrap initializes all components in dependency order.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initLogger,
		b.initRegistry,
		b.initEvaluator,
		b.initLuaHost,
		b.initResolvers,
		b.initDispatcher,
		b.initDiscoverer,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	b.e.logger.Debug().Strs("components", b.initOrder).Msg("engine initialized")
	return nil
}

func (b *bootstrapper) initLogger() error {
	if b.opts.logger != nil {
		b.e.logger = *b.opts.logger
	} else {
		l, closer, err := logging.New(b.e.cfg.Log)
		if err != nil {
			return &InitError{Component: "logger", Err: err}
		}
		b.e.logger = l
		b.e.closers = append(b.e.closers, closer)
	}
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

func (b *bootstrapper) initRegistry() error {
	b.e.registry = hook.NewRegistry(hook.WithLogger(b.e.logger))
	b.initOrder = append(b.initOrder, "registry")
	return nil
}

func (b *bootstrapper) initEvaluator() error {
	cfg := b.e.cfg
	base := condition.Context{
		Environment: cfg.Env,
		Config:      condition.MapSource(cfg.Values),
	}

	if cfg.Auth.JWTSecret != "" {
		b.e.auth = condition.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret),
			condition.WithRolesClaim(cfg.Auth.RolesClaim),
			condition.WithIssuer(cfg.Auth.Issuer),
		)
	}
	if cfg.Auth.Token != "" {
		if b.e.auth == nil {
			return &InitError{Component: "evaluator", Err: ErrNoAuthenticator}
		}
		state, err := b.e.auth.Authenticate(cfg.Auth.Token)
		if err != nil {
			return &InitError{Component: "evaluator", Err: err}
		}
		base.Auth = state
	}

	opts := []condition.Option{
		condition.WithPolicy(cfg.Policy()),
		condition.WithBaseContext(base),
		condition.WithLogger(b.e.logger),
	}
	if len(cfg.Conditions.StrictHooks) > 0 {
		opts = append(opts, condition.WithStrictNames(cfg.Conditions.StrictHooks...))
	}
	for name, p := range b.opts.predicates {
		opts = append(opts, condition.WithPredicate(name, p))
	}
	b.e.evaluator = condition.NewEvaluator(opts...)
	b.initOrder = append(b.initOrder, "evaluator")
	return nil
}

func (b *bootstrapper) initLuaHost() error {
	b.e.host = lua.NewHost(lua.WithLogger(b.e.logger))
	b.initOrder = append(b.initOrder, "lua")
	return nil
}

func (b *bootstrapper) initResolvers() error {
	b.e.container = b.opts.container
	if b.e.container == nil {
		b.e.container = hook.NewContainer()
	}
	b.initOrder = append(b.initOrder, "container")
	return nil
}

// resolver consults the container, then Lua scripts, then extra resolvers.
func (b *bootstrapper) resolver() hook.Resolver {
	chain := hook.ResolverChain{b.e.container, b.e.host}
	return append(chain, b.opts.resolvers...)
}

func (b *bootstrapper) initDispatcher() error {
	opts := []hook.DispatcherOption{
		hook.WithResolver(b.resolver()),
		hook.WithDispatchLogger(b.e.logger),
	}
	if b.opts.tracer != nil {
		opts = append(opts, hook.WithTracer(b.opts.tracer))
	}
	b.e.dispatcher = hook.NewDispatcher(b.e.registry, opts...)
	b.initOrder = append(b.initOrder, "dispatcher")
	return nil
}

func (b *bootstrapper) initDiscoverer() error {
	cfg := b.e.cfg.Discovery
	opts := []discovery.Option{
		discovery.WithLogger(b.e.logger),
		discovery.WithEvaluator(b.e.evaluator),
		discovery.WithLuaHost(b.e.host),
		discovery.WithPaths(cfg.Paths...),
		discovery.WithConcurrency(cfg.Concurrency),
	}
	if b.opts.catalog != nil {
		opts = append(opts, discovery.WithCatalog(b.opts.catalog))
	}
	for name, f := range b.opts.middleware {
		opts = append(opts, discovery.WithMiddleware(name, f))
	}
	b.e.discoverer = discovery.New(b.e.registry, opts...)
	b.initOrder = append(b.initOrder, "discoverer")
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "lua":
			b.e.host.Close()
			b.e.host = nil
		case "logger":
			for _, c := range b.e.closers {
				_ = c.Close()
			}
			b.e.closers = nil
		}
	}
}
