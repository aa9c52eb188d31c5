package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
	"github.com/dshills/hookwire/internal/lua"
)

// Registration describes one registered candidate.
type Registration struct {
	Name   string
	ID     string
	Source string
	Kind   Kind
}

// Skip describes a candidate that was deliberately not registered.
type Skip struct {
	Source string
	Name   string
	Reason string
}

// Report summarizes one discovery run.
type Report struct {
	Registered []Registration
	Skipped    []Skip
	Failures   []*CandidateError
	Duration   time.Duration
}

// Err joins every candidate failure, or returns nil.
func (r Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Report) fail(c *Candidate, source, name string, err error) {
	if c != nil && source == "" {
		source = c.Source
	}
	r.Failures = append(r.Failures, &CandidateError{Source: source, Name: name, Err: err})
}

// Discoverer scans candidates and registers them.
//
// Discover is additive. Rediscover clears the registry first and scans the
// last used paths again.
type Discoverer struct {
	registry    *hook.Registry
	evaluator   *condition.Evaluator
	host        *lua.Host
	catalog     *Catalog
	resolver    hook.Resolver
	extractors  []Extractor
	factories   map[string]MiddlewareFactory
	custom      map[string]MiddlewareFactory
	concurrency int
	logger      zerolog.Logger

	mu        sync.Mutex
	paths     []string
	scriptsMu sync.Mutex
	scripts   map[string]bool

	// installed holds the entries whose declared middleware is already in
	// the registry, keyed by name and id.
	installed map[string]bool
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithCatalog sets the catalog of Go definitions.
func WithCatalog(c *Catalog) Option {
	return func(d *Discoverer) {
		if c != nil {
			d.catalog = c
		}
	}
}

// WithLuaHost sets the host that loads Lua scripts.
func WithLuaHost(h *lua.Host) Option {
	return func(d *Discoverer) {
		if h != nil {
			d.host = h
		}
	}
}

// WithEvaluator sets the evaluator for declared conditions.
func WithEvaluator(ev *condition.Evaluator) Option {
	return func(d *Discoverer) {
		if ev != nil {
			d.evaluator = ev
		}
	}
}

// WithResolver makes discovery verify "Type@method" handlers of descriptor
// files at scan time.
func WithResolver(r hook.Resolver) Option {
	return func(d *Discoverer) {
		d.resolver = r
	}
}

// WithExtractors replaces the extractor chain.
func WithExtractors(ex ...Extractor) Option {
	return func(d *Discoverer) {
		d.extractors = ex
	}
}

// WithMiddleware adds or overrides a middleware factory.
func WithMiddleware(name string, f MiddlewareFactory) Option {
	return func(d *Discoverer) {
		d.custom[name] = f
	}
}

// WithPaths sets the default paths scanned when Discover gets none.
func WithPaths(paths ...string) Option {
	return func(d *Discoverer) {
		d.paths = paths
	}
}

// WithConcurrency bounds the number of files parsed in parallel.
func WithConcurrency(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the discovery logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = l.With().Str("component", "discovery").Logger()
	}
}

// New creates a discoverer that registers into reg.
func New(reg *hook.Registry, opts ...Option) *Discoverer {
	d := &Discoverer{
		registry:    reg,
		extractors:  DefaultExtractors(),
		custom:      make(map[string]MiddlewareFactory),
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zerolog.Nop(),
		scripts:     make(map[string]bool),
		installed:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.evaluator == nil {
		d.evaluator = condition.NewEvaluator()
	}
	if d.host == nil {
		d.host = lua.NewHost()
	}
	if d.catalog == nil {
		d.catalog = NewCatalog()
	}

	d.factories = BuiltinMiddleware(d.evaluator)
	for name, f := range d.custom {
		d.factories[name] = f
	}
	return d
}

// Catalog returns the catalog of Go definitions.
func (d *Discoverer) Catalog() *Catalog {
	return d.catalog
}

// Paths returns the paths the next Rediscover scans.
func (d *Discoverer) Paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.paths))
	copy(out, d.paths)
	return out
}

// Discover registers the catalog and every candidate file under paths.
// Without paths the configured paths are scanned. Discover never fails as
// a whole; per-candidate problems are listed in the Report.
func (d *Discoverer) Discover(ctx context.Context, paths ...string) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(paths) > 0 {
		d.paths = paths
	}
	return d.discover(ctx, d.paths)
}

// Rediscover clears the registry and scans the catalog and the last used
// paths again.
func (d *Discoverer) Rediscover(ctx context.Context) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.registry.Clear()
	for name := range d.scripts {
		d.host.Unload(name)
	}
	d.scripts = make(map[string]bool)
	d.installed = make(map[string]bool)

	return d.discover(ctx, d.paths)
}

func (d *Discoverer) discover(ctx context.Context, paths []string) Report {
	start := time.Now()
	var report Report

	for _, v := range d.catalog.Items() {
		if a, ok := v.(Abstract); ok && a.Abstract() {
			report.Skipped = append(report.Skipped, Skip{Source: fmt.Sprintf("%T", v), Reason: "abstract"})
			continue
		}
		c, err := goCandidate(v)
		if err != nil {
			report.fail(c, fmt.Sprintf("%T", v), "", err)
			continue
		}
		d.register(c, &report)
	}

	files := d.collect(paths)
	type loaded struct {
		c   *Candidate
		err error
	}
	results := make([]loaded, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			results[i].c, results[i].err = d.load(path)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if r.err != nil {
			report.fail(r.c, files[i], "", r.err)
			continue
		}
		d.register(r.c, &report)
	}

	report.Duration = time.Since(start)
	for _, f := range report.Failures {
		d.logger.Warn().Err(f.Err).Str("source", f.Source).Str("hook", f.Name).Msg("candidate skipped")
	}
	d.logger.Info().Int("registered", len(report.Registered)).Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failures)).Dur("elapsed", report.Duration).Msg("discovery finished")
	return report
}

// load turns a file into a candidate.
func (d *Discoverer) load(path string) (*Candidate, error) {
	if strings.HasSuffix(strings.ToLower(path), ".lua") {
		name := filepath.ToSlash(path)
		c, err := luaCandidate(d.host, name, path)
		if err == nil {
			d.trackScript(name)
		}
		return c, err
	}
	return fileCandidate(path)
}

// trackScript runs on parser goroutines while d.mu is held.
func (d *Discoverer) trackScript(name string) {
	d.scriptsMu.Lock()
	d.scripts[name] = true
	d.scriptsMu.Unlock()
}

// dropScript unloads the script behind a Lua candidate that was not
// registered.
func (d *Discoverer) dropScript(c *Candidate) {
	if c.Kind != KindLua || c.Script == nil {
		return
	}
	d.host.Unload(c.Script.Name)
	d.scriptsMu.Lock()
	delete(d.scripts, c.Script.Name)
	d.scriptsMu.Unlock()
}

// register extracts the descriptor of c and registers it with its
// middleware and conditions. Declared middleware is installed once per
// entry; repeated discovery only refreshes the entry itself.
func (d *Discoverer) register(c *Candidate, report *Report) {
	registered := false
	defer func() {
		if !registered {
			d.dropScript(c)
		}
	}()

	desc, err := extract(d.extractors, c)
	if err != nil {
		report.fail(c, "", desc.Name, err)
		return
	}
	if desc.Disabled {
		d.logger.Debug().Str("source", c.Source).Str("hook", desc.Name).Msg("disabled by descriptor")
		report.Skipped = append(report.Skipped, Skip{Source: c.Source, Name: desc.Name, Reason: "disabled"})
		return
	}

	mws := make([]hook.Middleware, 0, len(desc.Middleware))
	for _, ref := range desc.Middleware {
		f, ok := d.factories[ref.Name]
		if !ok {
			report.fail(c, "", desc.Name, fmt.Errorf("%w: %s", ErrUnknownMiddleware, ref.Name))
			return
		}
		m, err := f(ref.Params)
		if err != nil {
			report.fail(c, "", desc.Name, fmt.Errorf("middleware %s: %w", ref.Name, err))
			return
		}
		mws = append(mws, m)
	}

	if c.Kind == KindDescriptorFile && d.resolver != nil {
		if _, err := d.resolver.Resolve(c.Handler.TypeName(), c.Handler.MethodName()); err != nil {
			report.fail(c, "", desc.Name, err)
			return
		}
	}

	md := map[string]any{"source": c.Source, "kind": c.Kind.String()}
	if desc.Description != "" {
		md["description"] = desc.Description
	}
	id, err := d.registry.Register(desc.Name, c.Handler,
		hook.WithPriority(desc.Priority),
		hook.WithGroup(desc.Group),
		hook.WithMetadata(md),
	)
	if err != nil {
		report.fail(c, "", desc.Name, err)
		return
	}

	registered = true

	if key := desc.Name + "\x00" + id; !d.installed[key] {
		d.installed[key] = true
		for _, m := range mws {
			d.registry.AddMiddleware(desc.Name, scoped(id, m))
		}
		if len(desc.Conditions) > 0 {
			d.registry.AddMiddleware(desc.Name, scoped(id, d.evaluator.Middleware(desc.Conditions)))
		}
	}

	d.logger.Debug().Str("source", c.Source).Str("hook", desc.Name).Str("id", id).
		Int("priority", desc.Priority).Msg("hook discovered")
	report.Registered = append(report.Registered, Registration{
		Name: desc.Name, ID: id, Source: c.Source, Kind: c.Kind,
	})
}

// collect lists candidate files under paths, sorted and de-duplicated.
// Missing paths are ignored; hidden directories are not descended into.
func (d *Discoverer) collect(paths []string) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			d.logger.Debug().Err(err).Str("path", root).Msg("discovery path unavailable")
			continue
		}
		if !info.IsDir() {
			if isCandidateFile(root) {
				add(root)
			}
			continue
		}

		_ = filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if entry.IsDir() {
				if p != root && strings.HasPrefix(entry.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isCandidateFile(p) {
				add(p)
			}
			return nil
		})
	}

	sort.Strings(files)
	return files
}
