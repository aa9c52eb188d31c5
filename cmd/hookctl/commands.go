package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/hookwire/internal/app"
	"github.com/dshills/hookwire/internal/config/loader"
	"github.com/dshills/hookwire/internal/discovery"
	"github.com/dshills/hookwire/internal/hook"
)

// env is what a command runs against.
type env struct {
	engine *app.Engine
	report discovery.Report
	out    *printer
}

type command struct {
	summary string
	usage   string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"list":        {"List registered hooks", "[-group g] [name]", cmdList},
	"stats":       {"Show registry statistics", "", cmdStats},
	"discover":    {"Report discovery results", "", cmdDiscover},
	"clear-cache": {"Drop all entries and discover again", "", cmdClearCache},
	"enable":      {"Enable an entry", "<name> <id>", toggleCommand(true)},
	"disable":     {"Disable an entry", "<name> <id>", toggleCommand(false)},
	"remove":      {"Remove an entry, a hook or a group", "[-group g] <name> [id]", cmdRemove},
	"test":        {"Dispatch a hook and print the result", "[-token t] [-filter value] <name> [args...]", cmdTest},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var errFailures = errors.New("discovery reported failures")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func cmdList(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("list")
	group := fs.String("group", "", "Only entries in this group")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	filter := hook.Filter{Group: *group}
	if fs.NArg() > 0 {
		filter.Name = fs.Arg(0)
	}

	hooks := e.engine.Registry().Hooks(filter)
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	if e.out.json {
		doc := newDocument().setRaw("hooks", "[]")
		for _, name := range names {
			for _, entry := range hooks[name] {
				doc.setRaw("hooks.-1", entryJSON(entry))
			}
		}
		return e.out.document(doc)
	}

	var rows [][]string
	for _, name := range names {
		for _, entry := range hooks[name] {
			rows = append(rows, []string{
				entry.Name, entry.ID, strconv.Itoa(entry.Priority), entry.Group,
				strconv.FormatBool(entry.Enabled), entry.Handler.String(), source(entry),
			})
		}
	}
	e.out.table([]string{"NAME", "ID", "PRIORITY", "GROUP", "ENABLED", "HANDLER", "SOURCE"}, rows)
	return nil
}

func cmdStats(_ context.Context, e *env, _ []string) error {
	st := e.engine.Registry().Stats()
	groups := make([]string, 0, len(st.Groups))
	for g := range st.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	if e.out.json {
		doc := newDocument().
			set("total_hooks", st.TotalHooks).
			set("enabled_hooks", st.EnabledHooks).
			set("disabled_hooks", st.DisabledHooks).
			set("total_calls", st.TotalCalls).
			set("names", st.Names).
			setRaw("groups", "{}")
		for _, g := range groups {
			doc.set("groups."+escapePath(g)+".count", st.Groups[g].Count).
				set("groups."+escapePath(g)+".calls", st.Groups[g].Calls)
		}
		return e.out.document(doc)
	}

	e.out.line("hooks:    %d (%d enabled, %d disabled)", st.TotalHooks, st.EnabledHooks, st.DisabledHooks)
	e.out.line("names:    %d", st.Names)
	e.out.line("calls:    %d", st.TotalCalls)
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g, strconv.Itoa(st.Groups[g].Count), strconv.FormatUint(st.Groups[g].Calls, 10)})
	}
	e.out.table([]string{"GROUP", "COUNT", "CALLS"}, rows)
	return nil
}

func cmdDiscover(_ context.Context, e *env, _ []string) error {
	if err := printReport(e.out, e.report); err != nil {
		return err
	}
	if len(e.report.Failures) > 0 {
		return errFailures
	}
	return nil
}

func cmdClearCache(ctx context.Context, e *env, _ []string) error {
	report := e.engine.Discoverer().Rediscover(ctx)
	if err := printReport(e.out, report); err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return errFailures
	}
	return nil
}

func printReport(out *printer, r discovery.Report) error {
	if out.json {
		doc := newDocument().
			setRaw("registered", "[]").
			setRaw("skipped", "[]").
			setRaw("failures", "[]").
			set("duration_ms", r.Duration.Milliseconds())
		for _, reg := range r.Registered {
			doc.set("registered.-1", map[string]any{
				"name": reg.Name, "id": reg.ID, "source": reg.Source, "kind": reg.Kind.String(),
			})
		}
		for _, s := range r.Skipped {
			doc.set("skipped.-1", map[string]any{"name": s.Name, "source": s.Source, "reason": s.Reason})
		}
		for _, f := range r.Failures {
			doc.set("failures.-1", map[string]any{"name": f.Name, "source": f.Source, "error": f.Err.Error()})
		}
		return out.document(doc)
	}

	rows := make([][]string, 0, len(r.Registered)+len(r.Skipped)+len(r.Failures))
	for _, reg := range r.Registered {
		rows = append(rows, []string{"registered", reg.Name, reg.Source, reg.ID})
	}
	for _, s := range r.Skipped {
		rows = append(rows, []string{"skipped", s.Name, s.Source, s.Reason})
	}
	for _, f := range r.Failures {
		rows = append(rows, []string{"failed", f.Name, f.Source, f.Err.Error()})
	}
	out.table([]string{"STATUS", "NAME", "SOURCE", "DETAIL"}, rows)
	return nil
}

func toggleCommand(enabled bool) func(context.Context, *env, []string) error {
	return func(_ context.Context, e *env, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("%w: need a hook name and an entry id", errUsage)
		}
		reg := e.engine.Registry()
		entry, err := findEntry(reg, args[0], args[1])
		if err != nil {
			return err
		}
		reg.Toggle(entry.Name, entry.ID, enabled)
		entry, _ = reg.Entry(entry.Name, entry.ID)

		if e.out.json {
			return e.out.document(newDocument().setRaw("entry", entryJSON(entry)))
		}
		state := "disabled"
		if entry.Enabled {
			state = "enabled"
		}
		e.out.line("%s %s %s", entry.Name, entry.ID, state)
		return nil
	}
}

func cmdRemove(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("remove")
	group := fs.String("group", "", "Remove every entry in this group")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	reg := e.engine.Registry()

	var removed int
	switch {
	case *group != "":
		if fs.NArg() > 0 {
			return fmt.Errorf("%w: -group takes no hook name", errUsage)
		}
		removed = reg.RemoveByGroup(*group)
	case fs.NArg() == 1:
		removed = len(reg.Hooks(hook.Filter{Name: fs.Arg(0)})[fs.Arg(0)])
		reg.Remove(fs.Arg(0), "")
	case fs.NArg() == 2:
		entry, err := findEntry(reg, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		if reg.Remove(entry.Name, entry.ID) {
			removed = 1
		}
	default:
		return fmt.Errorf("%w: need a hook name or -group", errUsage)
	}

	if e.out.json {
		return e.out.document(newDocument().set("removed", removed).set("remaining", reg.Len()))
	}
	e.out.line("removed %d entries, %d remaining", removed, reg.Len())
	return nil
}

func cmdTest(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("test")
	token := fs.String("token", "", "Bearer token describing the caller")
	filter := fs.String("filter", "", "Run as a filter chain starting from this value")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: need a hook name", errUsage)
	}
	name := fs.Arg(0)
	hookArgs := make([]any, 0, fs.NArg()-1)
	for _, a := range fs.Args()[1:] {
		hookArgs = append(hookArgs, loader.ParseValue(a))
	}

	if *token != "" {
		var err error
		if ctx, err = e.engine.Authenticate(ctx, *token); err != nil {
			return err
		}
	}

	var (
		result *hook.Result
		final  any
	)
	filtered := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "filter" {
			filtered = true
		}
	})
	if filtered {
		final, result = e.engine.Dispatcher().Filter(ctx, name, loader.ParseValue(*filter), hookArgs...)
	} else {
		result = e.engine.Dispatcher().Execute(ctx, name, hookArgs...)
	}

	if e.out.json {
		doc := newDocument().
			set("hook", result.HookName).
			set("executed", result.ExecutedCount).
			set("duration_ms", float64(result.ExecutionTime)/float64(time.Millisecond)).
			set("skipped", result.Skipped()).
			setRaw("results", "[]")
		if filtered {
			doc.set("value", fmt.Sprint(final))
		}
		for _, id := range result.Order() {
			item := map[string]any{"id": id}
			if v, ok := result.Value(id); ok {
				item["value"] = fmt.Sprint(v)
			}
			if herr := result.Err(id); herr != nil {
				item["error"] = herr.Message
				item["location"] = herr.Location
			}
			doc.set("results.-1", item)
		}
		return e.out.document(doc)
	}

	rows := make([][]string, 0, len(result.Order()))
	for _, id := range result.Order() {
		if herr := result.Err(id); herr != nil {
			rows = append(rows, []string{id, "error", herr.Message})
			continue
		}
		v, _ := result.Value(id)
		rows = append(rows, []string{id, "ok", fmt.Sprint(v)})
	}
	for _, id := range result.Skipped() {
		rows = append(rows, []string{id, "skipped", ""})
	}
	e.out.table([]string{"ENTRY", "STATUS", "VALUE"}, rows)
	e.out.line("executed %d of %d in %s", result.ExecutedCount, len(result.Order())+len(result.Skipped()), result.ExecutionTime)
	if filtered {
		e.out.line("value: %v", final)
	}
	if result.HasErrors() {
		return fmt.Errorf("%d handler(s) failed", len(result.Errors()))
	}
	return nil
}

// findEntry matches id exactly or as a unique prefix.
func findEntry(reg *hook.Registry, name, id string) (hook.Entry, error) {
	if entry, ok := reg.Entry(name, id); ok {
		return entry, nil
	}
	var matches []hook.Entry
	for _, entry := range reg.Hooks(hook.Filter{Name: name})[name] {
		if strings.HasPrefix(entry.ID, id) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return hook.Entry{}, fmt.Errorf("no entry %s for hook %s", id, name)
	}
	return hook.Entry{}, fmt.Errorf("entry prefix %s is ambiguous for hook %s", id, name)
}

func entryJSON(e hook.Entry) string {
	doc := newDocument().
		set("name", e.Name).
		set("id", e.ID).
		set("priority", e.Priority).
		set("group", e.Group).
		set("enabled", e.Enabled).
		set("handler", e.Handler.String()).
		set("calls", e.CallCount).
		set("created_at", e.CreatedAt.Format(time.RFC3339))
	if s := source(e); s != "" {
		doc.set("source", s)
	}
	if d, ok := e.Metadata["description"].(string); ok {
		doc.set("description", d)
	}
	return doc.raw
}

func source(e hook.Entry) string {
	s, _ := e.Metadata["source"].(string)
	return s
}

// escapePath escapes sjson path syntax in a key.
func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
