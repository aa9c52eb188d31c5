// Command hookctl inspects and exercises hookwire hooks.
//
// Every invocation loads the configuration, discovers hooks from the
// configured paths and then runs one command against the resulting
// in-memory registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/app"
	"github.com/dshills/hookwire/internal/config"
	"github.com/dshills/hookwire/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errUsage marks errors caused by bad command lines.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalOptions are the flags accepted before the command name.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	paths      stringList
	json       bool
	verbose    bool
	version    bool
}

type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts globalOptions
	fs := flag.NewFlagSet("hookctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", config.DefaultFile, "Path to configuration file (shorthand)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.Var(&opts.paths, "path", "Discovery path (repeatable, replaces configured paths)")
	fs.BoolVar(&opts.json, "json", false, "Print JSON output")
	fs.BoolVar(&opts.verbose, "v", false, "Log to stderr at debug level")
	fs.BoolVar(&opts.version, "version", false, "Show version information")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "hookctl %s\nCommit: %s\nBuilt: %s\n", version, commit, date)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}

	engine, err := newEngine(opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer engine.Close()

	report, err := engine.Start(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out := newPrinter(stdout, opts.json)
	if err := cmd.run(ctx, &env{engine: engine, report: report, out: out}, cmdArgs); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Usage: hookctl %s %s\n", name, cmd.usage)
			return 2
		}
		return 1
	}
	return 0
}

// newEngine loads the configuration and builds the engine. Logs go to
// stderr so that command output on stdout stays parseable.
func newEngine(opts globalOptions, stderr io.Writer) (*app.Engine, error) {
	cfg, err := config.Load(config.WithFile(opts.configPath), config.WithEnvFile(opts.envFile))
	if err != nil {
		return nil, err
	}
	if len(opts.paths) > 0 {
		cfg.Discovery.Paths = opts.paths
	}
	// The CLI exits after one command, so watching is never useful.
	cfg.Discovery.Watch = false

	level := zerolog.WarnLevel
	switch {
	case opts.verbose:
		level = zerolog.DebugLevel
	case opts.logLevel != "":
		if level, err = zerolog.ParseLevel(opts.logLevel); err != nil {
			return nil, fmt.Errorf("%w: log level %q", errUsage, opts.logLevel)
		}
	}
	logger := logging.NewWithWriter(stderr, cfg.Log.Format, level)

	return app.New(cfg, app.WithLogger(logger))
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "hookctl - inspect and exercise hookwire hooks\n\n")
	fmt.Fprintf(w, "Usage: hookctl [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range commandNames() {
		c := commands[name]
		fmt.Fprintf(w, "  %-12s %s\n", name, c.summary)
	}
	fmt.Fprintf(w, "\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  hookctl list                       List every discovered hook\n")
	fmt.Fprintf(w, "  hookctl -json stats                Print registry statistics as JSON\n")
	fmt.Fprintf(w, "  hookctl test user.created ada      Dispatch user.created with one argument\n")
	fmt.Fprintf(w, "  hookctl -path ./hooks discover     Report discovery results for ./hooks\n")
}
