//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/procs-need-restart/pkg/config"
	"github.com/ja7ad/procs-need-restart/pkg/filter"
	"github.com/ja7ad/procs-need-restart/pkg/logutil"
	"github.com/ja7ad/procs-need-restart/pkg/metrics"
	"github.com/ja7ad/procs-need-restart/pkg/restart"
	"github.com/ja7ad/procs-need-restart/pkg/system/proc"
	"github.com/ja7ad/procs-need-restart/pkg/system/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 100
)

var geteuid = unix.Geteuid

// errScanFailed means some processes could not be inspected; the details
// were already logged.
var errScanFailed = errors.New("scan failed")

// usageError marks bad command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usage(err error) error { return &usageError{err: err} }

type opts struct {
	filters     []string
	verbose     bool
	version     bool
	config      string
	procfs      string
	jobs        int
	pathname    bool
	output      string
	metricsFile string
	debug       bool
	logFormat   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logutil.Setup(stderr, false, logutil.FormatText)

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		slog.Error(err.Error())
		fmt.Fprintf(stderr, "Try '%s --help' for more information.\n", logutil.Prog)
		return exitUsage
	case errors.Is(err, errScanFailed):
		return exitFail
	}
	slog.Error(err.Error())
	return exitFail
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var o opts

	root := &cobra.Command{
		Use:   "procs-need-restart [PID]...",
		Short: "List processes running deleted or replaced files",
		Long: `procs-need-restart lists processes whose executable or memory-mapped files
were deleted or replaced on disk since they started, typically by a package
upgrade. Such processes keep running the old code until they are restarted.

Without PIDs every user-space process is checked. Only files whose content
actually differs from what the process has loaded are reported.

Exit status: 0 on success, 1 if some process could not be inspected,
100 on invalid arguments.

Examples:
  procs-need-restart
  procs-need-restart -v 1 812
  procs-need-restart -f '!/usr/lib/debug/*' -f '/usr/*'
  procs-need-restart --output json --metrics-file /var/lib/node_exporter/pnr.prom`,
		Args: func(cmd *cobra.Command, args []string) error {
			if _, err := util.ParsePIDs(args); err != nil {
				return usage(err)
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.version {
				fmt.Fprintf(stdout, "%s %s\n", logutil.Prog, version)
				return nil
			}
			return run(cmd, o, args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usage(err)
	})

	f := root.Flags()
	f.StringArrayVarP(&o.filters, "filter", "f", nil, "only check paths matching `PATTERN`; a leading '!' excludes (repeatable, first match wins)")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "print every stale path as '<pid>\\t<path>'")
	f.BoolVarP(&o.version, "version", "V", false, "print version and exit")
	f.StringVar(&o.config, "config", config.DefaultPath, "configuration `FILE`; empty to ignore")
	f.StringVar(&o.procfs, "procfs", proc.DefaultRoot, "procfs mount point (default from $PROCFS_PATH)")
	f.IntVarP(&o.jobs, "jobs", "j", 1, "number of processes to check in parallel")
	f.BoolVar(&o.pathname, "pathname", false, "'*' in filters does not match '/'; '**' matches directories")
	f.StringVarP(&o.output, "output", "o", config.OutputText, "output format: text or json")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to `FILE` after the scan")
	f.BoolVar(&o.debug, "debug", false, "log debug messages")
	f.StringVar(&o.logFormat, "log-format", string(logutil.FormatText), "log format: text or json")

	return root
}

func run(cmd *cobra.Command, o opts, args []string, stdout, stderr io.Writer) error {
	format, err := logutil.ParseFormat(o.logFormat)
	if err != nil {
		return usage(err)
	}
	logutil.Setup(stderr, o.debug, format)

	pids, err := util.ParsePIDs(args)
	if err != nil {
		return usage(err)
	}

	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}

	syntax, err := filter.ParseSyntax(cfg.Glob)
	if err != nil {
		return usage(err)
	}
	// command-line rules come first, so they win over the file's
	rules, err := filter.Parse(append(slices.Clone(o.filters), cfg.Filters...), syntax)
	if err != nil {
		return usage(err)
	}

	pfs, err := proc.NewFS(cfg.Procfs)
	if err != nil {
		return err
	}

	var sink restart.Sink = restart.NewTextSink(stdout)
	if strings.EqualFold(cfg.Output, config.OutputJSON) {
		sink = restart.NewJSONSink(stdout, pfs)
	}

	ropts := restart.Options{
		Verbose:          o.verbose,
		IgnorePermission: geteuid() != 0,
		Rules:            rules,
		StagingSuffixes:  cfg.StagingSuffixes,
		Jobs:             cfg.Jobs,
	}
	slog.Debug("starting scan",
		"procfs", pfs.Root(), "pids", len(pids), "jobs", ropts.Jobs,
		"rules", strings.Join(rules.Patterns(), " "), "ignore_permission", ropts.IgnorePermission)

	sc := restart.NewScanner(pfs, ropts, sink)
	var sum restart.Summary
	if len(pids) > 0 {
		sum, err = sc.ScanPIDs(cmd.Context(), pids)
	} else {
		sum, err = sc.ScanAll(cmd.Context())
	}
	if err != nil {
		return err
	}
	slog.Debug("scan finished",
		"scanned", sum.Scanned, "skipped", sum.Skipped, "stale", sum.Stale, "failed", sum.Failed)

	if cfg.MetricsFile != "" {
		rec := metrics.New()
		rec.Observe(sum, time.Now())
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if !sum.OK() {
		return errScanFailed
	}
	return nil
}

// loadConfig merges defaults, the config file, the environment and flags,
// in increasing order of precedence.
func loadConfig(cmd *cobra.Command, o opts) (config.Config, error) {
	flags := cmd.Flags()

	res := &config.LoadResult{Config: config.DefaultConfig()}
	if o.config != "" {
		var err error
		res, err = config.LoadFrom(o.config, flags.Changed("config"))
		if err != nil {
			return config.Config{}, err
		}
	}
	for _, w := range res.Warnings {
		slog.Warn(w, "file", res.Path)
	}

	cfg := res.Config
	cfg.ApplyEnv(os.Getenv)

	if flags.Changed("procfs") {
		cfg.Procfs = o.procfs
	}
	if flags.Changed("jobs") {
		cfg.Jobs = o.jobs
	}
	if o.pathname {
		cfg.Glob = filter.SyntaxPathname.String()
	}
	if flags.Changed("output") {
		cfg.Output = o.output
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		if flags.Changed("jobs") || flags.Changed("output") || flags.Changed("procfs") {
			return config.Config{}, usage(err)
		}
		return config.Config{}, err
	}
	return cfg, nil
}
