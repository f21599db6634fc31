// apexusage reports which Apex classes, triggers, flows, Lightning bundles and
// metadata files in a Salesforce project reference a set of Apex classes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/analyzer"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/cache"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/config"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/toon"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/trace"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/worker"
)

var version = "dev"

const (
	formatJSON = "json"
	formatTOON = "toon"
)

// Exit codes.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "show version and exit",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	return newApp(stdin, stdout, stderr).RunContext(ctx, append([]string{"apexusage"}, reorderArgs(args)...))
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "apexusage",
		Usage:     "Find where Apex classes are referenced in a Salesforce project",
		UsageText: "apexusage [flags] [repo] [class...]",
		Version:   version,
		Description: `Scans the project at repo (default ".") and prints, for every target class,
the Apex classes, flows, Lightning bundles, triggers and metadata files that
reference it. Targets come from --class, from arguments after repo, or from
the classes setting in ` + config.FileName + `.`,
		HideHelpCommand: true,
		Reader:          stdin,
		Writer:          stdout,
		ErrWriter:       stderr,
		ExitErrHandler:  func(*cli.Context, error) {},
		Flags:           analysisFlags(),
		Action:          analyzeAction,
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "Report class usage once (default command)",
				ArgsUsage: "[repo] [class...]",
				Flags:     analysisFlags(),
				Action:    analyzeAction,
			},
			watchCommand(),
			workerCommand(),
			initCommand(),
		},
	}
}

// scanFlags select and tune the files an analysis reads.
func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "concurrent file scanners (0 = GOMAXPROCS)",
		},
		&cli.StringFlag{
			Name:  "max-file-size",
			Usage: "skip files larger than this, e.g. 500KB or 2MB (0 = unlimited)",
		},
		&cli.BoolFlag{
			Name:  "gitignore",
			Usage: "skip files matched by the root .gitignore",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "skip paths matching a doublestar glob (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "skip-dir",
			Usage: "skip directories with this name (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "metadata-suffix",
			Usage: "treat files with this suffix as metadata (repeatable, replaces the defaults)",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "config file (default <repo>/" + config.FileName + ")",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "log informational diagnostics",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "suppress warnings",
		},
	}
}

func analysisFlags() []cli.Flag {
	return append(scanFlags(),
		&cli.StringSliceFlag{
			Name:    "class",
			Aliases: []string{"c"},
			Usage:   "target class name or path to its .cls file (repeatable)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: json or toon",
			Value:   formatJSON,
		},
		&cli.StringFlag{
			Name:  "cache",
			Usage: "cache rendered output in this file",
		},
		&cli.BoolFlag{
			Name:  "isolate",
			Usage: "run the analysis in a worker subprocess",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "abort the analysis after this long (0 = no limit)",
		},
	)
}

// invocation is one resolved analysis request.
type invocation struct {
	root      string
	classes   []string
	format    string
	cachePath string
	isolate   bool
	timeout   time.Duration
	cfg       *config.Config
	sink      trace.Sink
	memo      *analyzer.Memo
}

func newInvocation(c *cli.Context) (*invocation, error) {
	inv := &invocation{
		root:      ".",
		format:    c.String("format"),
		cachePath: c.String("cache"),
		isolate:   c.Bool("isolate"),
		timeout:   c.Duration("timeout"),
		sink:      newSink(c),
	}
	if c.NArg() > 0 {
		inv.root = c.Args().First()
	}
	if inv.format != formatJSON && inv.format != formatTOON {
		return nil, fmt.Errorf("%w: unsupported format %q", analyzer.ErrInvalidInput, inv.format)
	}

	cfg, err := loadConfig(c, inv.root)
	if err != nil {
		return nil, err
	}
	inv.cfg = cfg

	inv.classes = append(inv.classes, c.StringSlice("class")...)
	inv.classes = append(inv.classes, c.Args().Tail()...)
	if len(inv.classes) == 0 {
		inv.classes = cfg.Classes
	}
	return inv, nil
}

// loadConfig reads the project config and applies flag overrides. Without
// --config the file is looked up in root, if root is a directory.
func loadConfig(c *cli.Context, root string) (*config.Config, error) {
	cfg := config.Default()

	path := c.String("config")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config: %v", analyzer.ErrInvalidInput, err)
		}
	} else if info, err := os.Stat(root); err == nil && info.IsDir() {
		path = filepath.Join(root, config.FileName)
	}

	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", analyzer.ErrInvalidInput, err)
		}
		cfg = loaded
	}
	if err := applyOverrides(c, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("max-file-size") {
		size, err := config.ParseSize(c.String("max-file-size"))
		if err != nil {
			return fmt.Errorf("%w: --max-file-size: %v", analyzer.ErrInvalidInput, err)
		}
		cfg.MaxFileSize = size
	}
	if c.Bool("gitignore") {
		cfg.RespectGitignore = true
	}
	cfg.Exclude = append(cfg.Exclude, c.StringSlice("exclude")...)
	cfg.SkipDirs = append(cfg.SkipDirs, c.StringSlice("skip-dir")...)
	if suffixes := c.StringSlice("metadata-suffix"); len(suffixes) > 0 {
		cfg.MetadataSuffixes = suffixes
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", analyzer.ErrInvalidInput, err)
	}
	return nil
}

func newSink(c *cli.Context) trace.Sink {
	if c.Bool("quiet") {
		return trace.Nop
	}
	return trace.NewLogger(c.App.ErrWriter, c.Bool("verbose"))
}

func analyzerOptions(cfg *config.Config, sink trace.Sink) []analyzer.Option {
	return []analyzer.Option{
		analyzer.WithTrace(sink),
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithMaxFileSize(cfg.MaxFileSize),
		analyzer.WithDiscoverOptions(cfg.DiscoverOptions()),
	}
}

func analyzeAction(c *cli.Context) error {
	inv, err := newInvocation(c)
	if err != nil {
		return exitError(err)
	}
	out, err := inv.execute(c.Context)
	if err != nil {
		return exitError(err)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

// execute runs the analysis and returns the rendered report.
func (inv *invocation) execute(ctx context.Context) ([]byte, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	if inv.isolate {
		return inv.executeIsolated(ctx)
	}

	opts := analyzerOptions(inv.cfg, inv.sink)
	if inv.memo != nil {
		opts = append(opts, analyzer.WithMemo(inv.memo))
	}
	scan, err := analyzer.Prepare(inv.root, inv.classes, opts...)
	if err != nil {
		return nil, err
	}

	var key uint64
	if inv.cachePath != "" {
		key = cache.Fingerprint(scan.Root, scan.Classes, scan.Files, version, inv.format)
		if data, ok := cache.Read(inv.cachePath, key); ok {
			inv.sink.Info("using cached report " + cache.Key(key))
			return data, nil
		}
	}

	entries, err := scan.Run(ctx)
	if err != nil {
		return nil, err
	}
	out, err := render(inv.format, &model.Report{Repo: filepath.Base(scan.Root), Entries: entries})
	if err != nil {
		return nil, err
	}

	if inv.cachePath != "" {
		if err := cache.Write(inv.cachePath, key, out); err != nil {
			inv.sink.Warn(err.Error())
		}
	}
	return out, nil
}

// executeIsolated hands the request to a child `apexusage worker` process
// carrying the already resolved settings.
func (inv *invocation) executeIsolated(ctx context.Context) ([]byte, error) {
	root, err := filepath.Abs(inv.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating worker binary: %w", err)
	}

	resp, err := worker.Exec(ctx, worker.Request{RepoDir: root, ClassIdentifiers: inv.classes}, exe, inv.workerArgs()...)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return render(inv.format, &model.Report{Repo: filepath.Base(root), Entries: resp.Result})
}

func (inv *invocation) workerArgs() []string {
	cfg := inv.cfg
	args := []string{
		"worker", "--no-config",
		"--workers", strconv.Itoa(cfg.Workers),
		"--max-file-size", strconv.FormatInt(cfg.MaxFileSize, 10),
	}
	if cfg.RespectGitignore {
		args = append(args, "--gitignore")
	}
	for _, p := range cfg.Exclude {
		args = append(args, "--exclude", p)
	}
	for _, d := range cfg.SkipDirs {
		args = append(args, "--skip-dir", d)
	}
	for _, s := range cfg.MetadataSuffixes {
		args = append(args, "--metadata-suffix", s)
	}
	return args
}

func render(format string, r *model.Report) ([]byte, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(r.Entries, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		return append(data, '\n'), nil
	case formatTOON:
		return []byte(toon.Encode(r) + "\n"), nil
	}
	return nil, fmt.Errorf("%w: unsupported format %q", analyzer.ErrInvalidInput, format)
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Serve one JSON analysis request from stdin",
		Description: `Reads a single {"repoDir", "classIdentifiers"} request from stdin, writes a
single {"type": "result"|"error"} response to stdout and exits. Diagnostics go
to stderr. The project config is read from repoDir unless --no-config is set.`,
		Flags: append(scanFlags(), &cli.BoolFlag{
			Name:  "no-config",
			Usage: "ignore " + config.FileName + " in the requested project",
		}),
		Action: workerAction,
	}
}

func workerAction(c *cli.Context) error {
	sink := newSink(c)
	fn := func(ctx context.Context, repoDir string, identifiers []string) ([]model.UsageEntry, error) {
		cfg := config.Default()
		if !c.Bool("no-config") {
			var err error
			if cfg, err = loadConfig(c, repoDir); err != nil {
				return nil, err
			}
		} else if err := applyOverrides(c, cfg); err != nil {
			return nil, err
		}
		return worker.Analyzer(analyzerOptions(cfg, sink)...)(ctx, repoDir, identifiers)
	}
	return worker.Serve(c.Context, c.App.Reader, c.App.Writer, fn)
}

func exitError(err error) error {
	switch {
	case errors.Is(err, analyzer.ErrInvalidInput):
		return cli.Exit(err, exitUsage)
	case errors.Is(err, analyzer.ErrRepositoryNotFound):
		return cli.Exit(err, exitNotFound)
	}
	return cli.Exit(err, exitFailure)
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return exitFailure
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-c": true, "--class": true,
	"-f": true, "--format": true,
	"-w": true, "--workers": true,
	"--cache": true, "--exclude": true, "--skip-dir": true,
	"--metadata-suffix": true, "--max-file-size": true,
	"--config": true, "--timeout": true, "--debounce": true,
}

// reorderArgs moves positional arguments after all flags so the flag parser
// sees every flag (it stops at the first non-flag arg). A leading command
// name stays in front.
func reorderArgs(args []string) []string {
	if len(args) > 0 && isCommand(args[0]) {
		return append([]string{args[0]}, reorderArgs(args[1:])...)
	}

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 1 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	if len(positional) == 0 {
		return flags
	}
	return append(append(flags, "--"), positional...)
}

func isCommand(arg string) bool {
	switch arg {
	case "analyze", "watch", "worker", "init", "help":
		return true
	}
	return false
}
