package commander

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/config"
	"github.com/Paul-Berdier/123PandaRoux/internal/logger"
	"github.com/Paul-Berdier/123PandaRoux/internal/pipeline"
)

type rootOptions struct {
	cfgFile  string
	profiles []string
	debug    bool
	trials   int
	workers  int
	seed     int64
	timeout  time.Duration
	noRender bool

	cfg *config.Config
	log *zap.Logger
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "catnat",
		Short:         "Natural catastrophe data pipeline",
		Long:          `catnat cleans a natural catastrophe dataset, isolates a row for later prediction, trains a gradient-boosted classifier with a hyperparameter search and predicts the isolated row.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (default is ./catnat.yaml)")
	f.StringSliceVarP(&opts.profiles, "profile", "p", nil, "feature profiles to run (default: first configured profile)")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	f.IntVar(&opts.trials, "trials", 0, "number of search trials (overrides config)")
	f.IntVar(&opts.workers, "workers", 0, "trials evaluated in parallel (overrides config)")
	f.Int64Var(&opts.seed, "seed", 0, "search seed (overrides config)")
	f.DurationVar(&opts.timeout, "timeout", 0, "search wall-clock budget, 0 for none (overrides config)")
	f.BoolVar(&opts.noRender, "no-render", false, "skip PNG figures")

	root.AddCommand(
		newRunCmd(opts),
		newStageCmd(opts, pipeline.StageClean),
		newStageCmd(opts, pipeline.StageIsolate),
		newStageCmd(opts, pipeline.StageTrain),
		newStageCmd(opts, pipeline.StagePredict),
		newMenuCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	c, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("trials") {
		c.Search.Trials = o.trials
	}
	if f.Changed("workers") {
		c.Search.Workers = o.workers
	}
	if f.Changed("seed") {
		c.Search.Seed = o.seed
	}
	if f.Changed("timeout") {
		c.Search.Timeout = o.timeout
	}
	if o.noRender {
		c.Render.Enabled = false
	}
	if o.debug {
		c.Logging.Level = "debug"
		c.Logging.Development = true
	}
	if err := c.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
		OutputPaths: c.Logging.OutputPaths,
	})
	if err != nil {
		return err
	}
	o.cfg, o.log = c, log
	return nil
}

func (o *rootOptions) commander(cmd *cobra.Command) *Commander {
	return NewCommander(o.cfg, o.log, cmd.InOrStdin(), cmd.OutOrStdout())
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var stageNames []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run pipeline stages non-interactively",
		Example: `  catnat run
  catnat run --stages clean,isolate --profile iot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := pipeline.ParseStages(stageNames)
			if err != nil {
				return err
			}
			return opts.commander(cmd).Run(cmd.Context(), opts.profiles, stages)
		},
	}
	cmd.Flags().StringSliceVar(&stageNames, "stages", nil, "stages to run: clean,isolate,train,predict (default all)")
	return cmd
}

func newStageCmd(opts *rootOptions, stage pipeline.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: stage.Description(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.commander(cmd).Run(cmd.Context(), opts.profiles, []pipeline.Stage{stage})
		},
	}
}

func newMenuCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Choose stages from an interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.commander(cmd).Menu(cmd.Context(), opts.profiles)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration as YAML (default ./catnat.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "catnat.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(opts.cfg, path); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", abs)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
