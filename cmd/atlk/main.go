// Command atlk checks ATLK properties of multi-agent systems described in
// YAML.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-atlk/atlk"
	"github.com/rfielding/kripke-atlk/config"
	"github.com/rfielding/kripke-atlk/kripke"
	"github.com/rfielding/kripke-atlk/models"
)

// Exit codes.
const (
	exitOK    = 0
	exitInput = 1 // model or property could not be read
	exitUsage = 2
)

// exitError carries the exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func inputError(err error) error { return &exitError{code: exitInput, err: err} }
func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// cli holds the flags shared by every command and the state built from
// them before a command runs.
type cli struct {
	builtin       bool
	variant       string
	observability string
	semantics     string
	workers       int
	logLevel      string

	filtering  bool
	separation string
	early      string
	threshold  float64
	caching    bool

	cfg  *config.Config
	log  *slog.Logger
	opts atlk.Options
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "atlk",
		Short:         "Symbolic ATLK model checker for multi-agent systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&c.builtin, "builtin", false, "load an embedded model by name ("+joinNames()+")")
	pf.StringVar(&c.variant, "variant", "", "strategic algorithm: sf, fs, fsf, partial, symbolic, symbolic-filtered")
	pf.StringVar(&c.observability, "observability", "", "partial or full")
	pf.StringVar(&c.semantics, "semantics", "", "group or individual")
	pf.IntVar(&c.workers, "workers", 0, "strategies evaluated concurrently")
	pf.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&c.filtering, "filtering", true, "partial: filter winning moves first")
	pf.StringVar(&c.separation, "separation", "", "partial: none, random or reach")
	pf.StringVar(&c.early, "early", "", "partial: none, full, partial or threshold")
	pf.Float64Var(&c.threshold, "threshold", 0, "partial: threshold of the threshold early termination")
	pf.BoolVar(&c.caching, "caching", false, "partial: cache sub-formula results")

	root.AddCommand(
		newCheckCmd(c),
		newWatchCmd(c),
		newInfoCmd(c),
		newGraphCmd(c),
		newFreeChoiceCmd(c),
	)
	return root
}

// setup reads the environment, lets changed flags override it and builds
// the logger and the evaluator options.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return usageError(err)
	}
	flags := cmd.Flags()
	if flags.Changed("variant") {
		cfg.Variant = c.variant
	}
	if flags.Changed("observability") {
		cfg.Observability = c.observability
	}
	if flags.Changed("semantics") {
		cfg.Semantics = c.semantics
	}
	if flags.Changed("workers") {
		cfg.Workers = c.workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("filtering") {
		cfg.Filtering = c.filtering
	}
	if flags.Changed("separation") {
		cfg.Separation = c.separation
	}
	if flags.Changed("early") {
		cfg.Early = c.early
	}
	if flags.Changed("threshold") {
		cfg.Threshold = c.threshold
	}
	if flags.Changed("caching") {
		cfg.Caching = c.caching
	}

	level, err := cfg.Level()
	if err != nil {
		return usageError(err)
	}
	c.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString())
	if c.opts, err = cfg.Options(c.log); err != nil {
		return usageError(err)
	}
	c.cfg = cfg

	if cfg.MetricsAddr != "" {
		c.serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

func (c *cli) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		c.log.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			c.log.Error("metrics endpoint stopped", "addr", addr, "error", err)
		}
	}()
}

// loadModel reads the model named by arg, a path or with --builtin an
// embedded model.
func (c *cli) loadModel(arg string) (*kripke.System, error) {
	var sys *kripke.System
	var err error
	if c.builtin {
		sys, err = models.Load(arg, c.cfg.BDDOptions()...)
	} else {
		sys, err = kripke.LoadFile(arg, c.cfg.BDDOptions()...)
	}
	if err != nil {
		return nil, inputError(fmt.Errorf("loading %s: %w", arg, err))
	}
	c.log.Info("model loaded",
		"model", sys.Name,
		"variables", len(sys.Vars()),
		"bdd_variables", sys.Manager().Varnum(),
		"agents", len(sys.Agents()))
	return sys, nil
}

func (c *cli) evaluator(sys *kripke.System) (*atlk.Evaluator, error) {
	e, err := atlk.New(sys, c.opts)
	if err != nil {
		return nil, usageError(err)
	}
	return e, nil
}

func joinNames() string { return strings.Join(models.Names(), ", ") }
