// nbtscan scans an IPv4 range for NetBIOS hosts and prints their name, workgroup and MAC
// address.
//
// Usage:
//
//	nbtscan [options] RANGE
//
// RANGE is a single address (192.168.1.10), a last-octet range (192.168.1.1-254) or a CIDR
// block with a /15 to /29 mask (192.168.1.0/24).
//
// Exit codes:
//
//	0: scan completed
//	1: runtime failure
//	2: usage error or invalid RANGE (nothing is sent)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marcuoli/go-nbtscan/internal/report"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/arp"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/iprange"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/oui"
)

// Flag names.
const (
	flagConfig  = "config"
	flagWorkers = "workers"
	flagTimeout = "timeout"
	flagVerbose = "verbose"
	flagDebug   = "debug"
	flagVendor  = "vendor"
	flagOUIDB   = "oui-db"
	flagARP     = "arp"
	flagNames   = "names"
	flagDump    = "dump"
)

// usageError marks errors that map to exit code 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func init() {
	// -v belongs to --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	def := defaultConfig()
	return &cli.Command{
		Name:      "nbtscan",
		Usage:     "scan an IPv4 range for NetBIOS name information",
		ArgsUsage: "RANGE",
		Version:   nbtscan.VersionInfo(),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.IntFlag{Name: flagWorkers, Aliases: []string{"w"}, Usage: "concurrent probes", Value: def.Workers},
			&cli.DurationFlag{Name: flagTimeout, Aliases: []string{"t"}, Usage: "wait per host", Value: def.Timeout},
			&cli.BoolFlag{Name: flagVerbose, Aliases: []string{"v"}, Usage: "report every contact and failure"},
			&cli.BoolFlag{Name: flagDebug, Usage: "also log decoder and pool internals"},
			&cli.BoolFlag{Name: flagVendor, Usage: "add a MAC vendor column"},
			&cli.StringFlag{Name: flagOUIDB, Usage: "IEEE oui.txt used by --vendor"},
			&cli.BoolFlag{Name: flagARP, Usage: "ask ARP when a reply carries no MAC"},
			&cli.BoolFlag{Name: flagNames, Usage: "list the full name table of each host"},
			&cli.BoolFlag{Name: flagDump, Usage: "hex dump each reply"},
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return &usageError{err: err}
		},
		// run() owns the exit code.
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return scan(ctx, cmd, stdout, stderr)
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		return exitCode(err, stderr)
	}
	return 0
}

func exitCode(err error, stderr io.Writer) int {
	var uerr *usageError
	var perr *iprange.ParseError
	switch {
	case errors.As(err, &perr):
		fmt.Fprintf(stderr, "invalid range: %v\n", perr)
		return 2
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "usage error: %v\n", uerr)
		return 2
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func resolveConfig(cmd *cli.Command) (config, error) {
	cfg := defaultConfig()
	if path := cmd.String(flagConfig); path != "" {
		if err := loadConfigFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	applyFlags(&cfg, cmd)
	return cfg, cfg.validate()
}

func scan(ctx context.Context, cmd *cli.Command, stdout, stderr io.Writer) error {
	if cmd.NArg() != 1 {
		return &usageError{err: fmt.Errorf("expected exactly one RANGE, got %d arguments", cmd.NArg())}
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return &usageError{err: err}
	}
	addrs, err := iprange.Parse(cmd.Args().First())
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cfg)
	defer func() { _ = logger.Sync() }()
	installDebugLogger(logger, cfg)
	defer nbtscan.SetDebugLogger(nil)

	scanner := nbtscan.NewScanner()
	scanner.Options.Workers = cfg.Workers
	scanner.Options.Timeout = cfg.Timeout
	scanner.Options.Verbose = cfg.Verbose || cfg.Debug
	if cfg.Vendor {
		vendors := oui.NewResolver(cfg.OUIDatabase)
		if err := vendors.Check(); err != nil {
			return err
		}
		scanner.Options.Vendors = vendors
	}
	if cfg.ARP {
		if arp.IsSupported() {
			scanner.Options.ARP = arp.NewResolver()
		} else {
			logger.Warn("ARP fallback is not supported on this platform")
		}
	}

	fmt.Fprintln(stdout, report.Banner(addrs))
	hosts, scanErr := scanner.Run(ctx, addrs)
	if err := report.Write(stdout, hosts, report.Options{Vendor: cfg.Vendor, Names: cfg.Names, Dump: cfg.Dump}); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("scan interrupted after %d hosts: %w", len(hosts), scanErr)
	}
	return nil
}

// newLogger builds the zap sink for library debug output. Without --verbose or --debug only
// warnings are shown.
func newLogger(w io.Writer, cfg config) *zap.Logger {
	level := zapcore.WarnLevel
	if cfg.Verbose || cfg.Debug {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func installDebugLogger(logger *zap.Logger, cfg config) {
	switch {
	case cfg.Debug:
		nbtscan.SetDebugLevel(nbtscan.DebugVerbose)
	case cfg.Verbose:
		nbtscan.SetDebugLevel(nbtscan.DebugBasic)
	default:
		nbtscan.SetDebugLevel(nbtscan.DebugOff)
		nbtscan.SetDebugLogger(nil)
		return
	}
	nbtscan.SetDebugLogger(func(component nbtscan.Component, format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...), zap.String("component", nbtscan.ComponentToPrefix(component)))
	})
}
