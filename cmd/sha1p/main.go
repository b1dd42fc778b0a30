package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alexflint/go-arg"

	sumcache "github.com/mattkeenan/sumcache/pkg"
)

const programName = "sha1p"

var version = "dev"

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1 // at least one file could not be processed
	exitUsage  = 2 // bad arguments or configuration
)

// Arguments are the sha1p command-line flags
type Arguments struct {
	Force      bool     `arg:"-f,--force" help:"recompute hashes even when the quick fingerprint matches"`
	DoDotDirs  bool     `arg:"-d,--do-dot-dirs" help:"also process files below hidden directories"`
	Threads    int      `arg:"-j,--threads" help:"number of hash workers [default: from config, 4]"`
	Echo       bool     `arg:"-e,--echo" help:"print \"<hash>  <path>\" for every processed file"`
	Verbose    bool     `arg:"-v,--verbose" help:"debug logging"`
	Silent     bool     `arg:"-s,--silent" help:"only log warnings and errors"`
	Recursive  bool     `arg:"-r,--recursive" help:"descend into subdirectories of directory arguments"`
	Exclude    []string `arg:"-x,--exclude,separate" help:"skip paths matching GLOB (repeatable)" placeholder:"GLOB"`
	FailFast   bool     `arg:"--fail-fast" help:"stop dispatching after the first failed file"`
	ConfigPath string   `arg:"--config" help:"configuration file" placeholder:"PATH"`
	Overrides  []string `arg:"-o,--override,separate" help:"override a config value, e.g. hash_workers:8" placeholder:"KEY:VALUE"`
	Debug      string   `arg:"--debug" help:"comma-separated debug flags (decide, perms)" placeholder:"FLAGS"`
	Paths      []string `arg:"positional" help:"files or directories; - or none reads paths from stdin" placeholder:"PATH"`
}

func (Arguments) Version() string {
	return fmt.Sprintf("%s %s", programName, version)
}

func (Arguments) Description() string {
	return "sha1p maintains SHA1SUMS files, skipping files whose quick fingerprint is unchanged"
}

func main() {
	shutdown := setupSignalHandler()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, shutdown))
}

// parseArgs parses argv. handled is true when help or version was printed.
func parseArgs(argv []string, stdout io.Writer) (args *Arguments, handled bool, err error) {
	args = &Arguments{}
	parser, err := arg.NewParser(arg.Config{Program: programName}, args)
	if err != nil {
		return nil, false, err
	}

	err = parser.Parse(argv)
	switch {
	case errors.Is(err, arg.ErrHelp):
		parser.WriteHelp(stdout)
		return args, true, nil
	case errors.Is(err, arg.ErrVersion):
		fmt.Fprintln(stdout, args.Version())
		return args, true, nil
	case err != nil:
		return nil, false, err
	}

	if args.Verbose && args.Silent {
		return nil, false, fmt.Errorf("--verbose and --silent are mutually exclusive")
	}
	if args.Threads < 0 {
		return nil, false, fmt.Errorf("--threads must be positive, got %d", args.Threads)
	}
	return args, false, nil
}

// loadConfig reads the config file named by args, or the default one
func loadConfig(args *Arguments) (*sumcache.Config, error) {
	path := args.ConfigPath
	if path == "" {
		var err error
		path, err = sumcache.DefaultConfigPath()
		if err != nil {
			sumcache.Warnf("%v, using built-in defaults", err)
			cfg := sumcache.NewDefaultConfig()
			return cfg, cfg.ApplyOverrides(args.Overrides)
		}
	}

	cfg, err := sumcache.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(args.Overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run is main without the process exit; it returns the exit code
func run(argv []string, stdin io.Reader, stdout, stderr io.Writer, shutdown <-chan struct{}) int {
	sumcache.SetLogOutput(stderr)

	args, handled, err := parseArgs(argv, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}
	if handled {
		return exitOK
	}

	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}
	all := cfg.GetAllConfig()

	level := all.Verbose.Level
	switch {
	case args.Verbose:
		level = sumcache.LevelDebug
	case args.Silent:
		level = sumcache.LevelSilent
	}
	sumcache.SetVerboseLevel(level)

	debug := all.Verbose.Debug
	if args.Debug != "" {
		debug = args.Debug
	}
	sumcache.SetDebugFlags(debug)

	alg, err := sumcache.GetHashAlgorithm(all.Hash.Default)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}
	// both already passed Validate
	bufferSize, _ := sumcache.ParseHumanSize(all.Performance.HashBuffer)
	sampleSize, _ := sumcache.ParseHumanSize(all.Performance.QuickSample)
	hasher := sumcache.NewFileHasher(alg, bufferSize, sampleSize)

	excludes := append(append([]string{}, all.Scan.Exclude...), args.Exclude...)
	enumerator, err := sumcache.NewEnumerator(args.Recursive || all.Scan.Recursive, excludes, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return exitUsage
	}

	workers := all.Performance.HashWorkers
	if args.Threads > 0 {
		workers = args.Threads
	}
	opts := sumcache.Options{
		Workers:        workers,
		Force:          args.Force,
		IncludeDotDirs: args.DoDotDirs || all.Scan.DotDirs,
		BatchSize:      all.Performance.FlushBatch,
		FailFast:       args.FailFast,
	}
	if args.Echo {
		opts.Echo = stdout
	}
	sumcache.VerboseLog(sumcache.LevelDebug, "using %s, %d workers, flushing every %d files",
		alg.Name, opts.Workers, opts.BatchSize)

	dispatcher := sumcache.NewDispatcher(opts, hasher, alg, sumcache.NewPermissionNormalizer())

	paths := make(chan string, workers)
	enumErr := make(chan error, 1)
	go func() {
		enumErr <- enumerator.Stream(shutdown, args.Paths, paths)
	}()

	summary := dispatcher.Run(shutdown, paths)
	if err := <-enumErr; err != nil {
		sumcache.Errorf("%v", err)
		summary.Failures = append(summary.Failures, sumcache.FileFailure{Err: err})
	}

	sumcache.Infof("%s", summary)

	if summary.Err() != nil {
		return exitFailed
	}
	return exitOK
}
