package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/render-loop/internal/config"
	"github.com/kingrea/render-loop/internal/dispatch"
	"github.com/kingrea/render-loop/internal/logbook"
	"github.com/kingrea/render-loop/internal/logging"
	"github.com/kingrea/render-loop/internal/plan"
	"github.com/kingrea/render-loop/internal/tui"
)

type rootOptions struct {
	dir        string
	configFile string
	sets       map[string]string
	values     []int
	dryRun     bool
	progress   bool
	strict     bool
	summary    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "renderloop",
		Short: "Render a parameterized document once per parameter value",
		Long: `renderloop invokes an external renderer (Quarto by default) once for every
configured parameter value, in order, waiting for each render to finish before
starting the next. Failed renders never stop the loop and print nothing;
they are recorded in .renderloop/logs and shown by "renderloop history".
Pass --summary for a per-render report on the terminal.

Without a .renderloop/config.yaml the defaults are used:
  quarto render index.qmd -P year:<value> --output penguin_report_<value>.html
for the values 2007, 2008 and 2009.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	flags := cmd.Flags()
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "directory to render in (defaults to cwd)")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "explicit config file instead of .renderloop/config.yaml")
	flags.StringToStringVar(&opts.sets, "set", nil, "override a config field (tool, source, param, output, command), repeatable")
	flags.IntSliceVar(&opts.values, "values", nil, "override the parameter values, e.g. --values 2007,2008")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the command lines without running them")
	flags.BoolVar(&opts.progress, "progress", false, "show an interactive progress view")
	flags.BoolVar(&opts.strict, "strict", false, "exit non-zero when any render fails")
	flags.BoolVar(&opts.summary, "summary", false, "print a per-render summary when the loop ends")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "write debug records to the log file")

	cmd.AddCommand(newInitCmd(opts), newHistoryCmd(opts))
	return cmd
}

func runRender(cmd *cobra.Command, opts *rootOptions) error {
	dir, err := resolveDir(opts.dir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir, opts.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Override(opts.sets); err != nil {
		return err
	}
	if cmd.Flags().Changed("values") {
		cfg.Render.Values = append([]int{}, opts.values...)
	}
	spec, err := cfg.Spec()
	if err != nil {
		return err
	}
	invocations, err := plan.Build(spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.dryRun {
		dispatch.New(&dispatch.PrintRunner{W: out}).Run(invocations)
		return nil
	}

	if err := config.EnsureStateDir(dir); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogsDir(), opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Close()
	book, err := logbook.New(cfg.HistoryPath())
	if err != nil {
		return err
	}

	runner := &dispatch.ExecRunner{Dir: dir}
	if cfg.StreamOutput() && !opts.progress {
		runner.Stdin = os.Stdin
		runner.Stdout = out
		runner.Stderr = cmd.ErrOrStderr()
	}
	loopOpts := []dispatch.Option{
		dispatch.WithLogger(logger.Logger),
		dispatch.WithObserver(book),
	}

	var report dispatch.Report
	if opts.progress {
		report, err = tui.RunProgress(invocations, func(obs dispatch.Observer) *dispatch.Loop {
			return dispatch.New(runner, append(loopOpts, dispatch.WithObserver(obs))...)
		})
		if err != nil {
			return err
		}
	} else {
		report = dispatch.New(runner, loopOpts...).Run(invocations)
	}

	if opts.summary {
		fmt.Fprint(out, tui.Summary(report))
	}
	if failed := len(report.Failed()); failed > 0 && (opts.strict || cfg.Render.Strict) {
		return fmt.Errorf("%d of %d renders failed", failed, len(report.Outcomes))
	}
	return nil
}

func resolveDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	return abs, nil
}

func loadConfig(dir, configFile string) (*config.Config, error) {
	if path := strings.TrimSpace(configFile); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		return config.Load(dir, abs)
	}
	return config.NewConfig(dir)
}
