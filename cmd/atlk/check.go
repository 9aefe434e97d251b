package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-atlk/atlk"
	"github.com/rfielding/kripke-atlk/formula"
)

type checkFlags struct {
	props []string
	stats bool
}

func newCheckCmd(c *cli) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check MODEL",
		Short: "Check properties of a model",
		Long: `Check the properties given with -p, else read from standard input one
per line (blank lines and lines starting with -- are skipped), else the
properties listed in the model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd, args[0], f)
		},
	}
	cmd.Flags().StringArrayVarP(&f.props, "property", "p", nil, "property to check (repeatable)")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print evaluation counters")
	return cmd
}

func (c *cli) runCheck(cmd *cobra.Command, model string, f *checkFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sys, err := c.loadModel(model)
	if err != nil {
		return err
	}
	e, err := c.evaluator(sys)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(f.props) > 0 {
		for _, p := range f.props {
			if err := check(ctx, e, out, p, 1); err != nil {
				return err
			}
		}
		return c.printStats(out, e, f)
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	n, err := checkLines(ctx, e, in, out, interactive)
	if err != nil {
		return err
	}
	if n == 0 && !interactive {
		for i, p := range sys.Specs() {
			if err := check(ctx, e, out, p, i+1); err != nil {
				return err
			}
		}
	}
	return c.printStats(out, e, f)
}

// checkLines checks every property read from in and returns how many it
// checked.
func checkLines(ctx context.Context, e *atlk.Evaluator, in io.Reader, out io.Writer, prompt bool) (int, error) {
	sc := bufio.NewScanner(in)
	n, line := 0, 0
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			break
		}
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "--") {
			continue
		}
		if err := check(ctx, e, out, text, line); err != nil {
			return n, err
		}
		n++
	}
	if prompt {
		fmt.Fprintln(out)
	}
	if err := sc.Err(); err != nil {
		return n, inputError(err)
	}
	return n, nil
}

func check(ctx context.Context, e *atlk.Evaluator, out io.Writer, text string, line int) error {
	f, err := formula.ParseLine(text, line)
	if err != nil {
		return inputError(fmt.Errorf("property %q: %w", text, err))
	}
	ok, err := e.Check(ctx, f)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return inputError(fmt.Errorf("property %q: %w", text, err))
	}
	fmt.Fprintf(out, "Specification %s is %t\n", text, ok)
	return nil
}

func (c *cli) printStats(out io.Writer, e *atlk.Evaluator, f *checkFlags) error {
	if f.stats {
		fmt.Fprintln(out)
		fmt.Fprint(out, e.Stats().Table())
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func newWatchCmd(c *cli) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "watch MODEL",
		Short: "Check properties again each time the model file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.builtin {
				return usageError(errors.New("watch needs a model file"))
			}
			return c.runWatch(cmd, args[0], f)
		},
	}
	cmd.Flags().StringArrayVarP(&f.props, "property", "p", nil, "property to check (repeatable)")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print evaluation counters")
	return cmd
}

func (c *cli) runWatch(cmd *cobra.Command, model string, f *checkFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(model)); err != nil {
		return inputError(err)
	}
	target := filepath.Clean(model)

	run := func() {
		fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", model)
		if err := c.runCheckOnce(ctx, cmd, model, f); err != nil {
			c.log.Error("check failed", "model", model, "error", err)
		}
	}
	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			c.log.Debug("model changed", "model", model, "op", ev.Op.String())
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watch error", "error", err)
		}
	}
}

// runCheckOnce checks the watched properties, or the model's own.
func (c *cli) runCheckOnce(ctx context.Context, cmd *cobra.Command, model string, f *checkFlags) error {
	sys, err := c.loadModel(model)
	if err != nil {
		return err
	}
	e, err := c.evaluator(sys)
	if err != nil {
		return err
	}
	props := f.props
	if len(props) == 0 {
		props = sys.Specs()
	}
	out := cmd.OutOrStdout()
	for i, p := range props {
		if err := check(ctx, e, out, p, i+1); err != nil {
			return err
		}
	}
	return c.printStats(out, e, f)
}
