package commander

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/config"
	"github.com/Paul-Berdier/123PandaRoux/internal/jobs"
	"github.com/Paul-Berdier/123PandaRoux/internal/metrics"
	"github.com/Paul-Berdier/123PandaRoux/internal/pipeline"
)

// Commander drives the pipeline for a terminal user: an interactive stage
// menu plus the printed run summary shared with the non-interactive commands.
type Commander struct {
	cfg *config.Config
	log *zap.Logger
	in  io.Reader
	out io.Writer

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	blue   func(a ...any) string
}

func NewCommander(cfg *config.Config, log *zap.Logger, in io.Reader, out io.Writer) *Commander {
	if log == nil {
		log = zap.NewNop()
	}
	return &Commander{
		cfg:    cfg,
		log:    log,
		in:     in,
		out:    out,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		blue:   color.New(color.FgBlue).SprintFunc(),
	}
}

// ParseSelection reads a comma-separated list of 1-based stage numbers.
// Empty input selects every stage. Stages always run in pipeline order.
func ParseSelection(input string, stages []pipeline.Stage) ([]pipeline.Stage, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return append([]pipeline.Stage(nil), stages...), nil
	}

	chosen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a stage number", part)
		}
		if n < 1 || n > len(stages) {
			return nil, fmt.Errorf("stage %d does not exist (choose 1-%d)", n, len(stages))
		}
		chosen[n] = true
	}
	if len(chosen) == 0 {
		return nil, fmt.Errorf("no stage selected")
	}

	var out []pipeline.Stage
	for i, s := range stages {
		if chosen[i+1] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Commander) printWelcome() {
	fmt.Fprintln(c.out, c.cyan("╔══════════════════════════════════════════╗"))
	fmt.Fprintln(c.out, c.cyan("║      Natural Catastrophe Pipeline        ║"))
	fmt.Fprintln(c.out, c.cyan("║   clean · isolate · train · predict      ║"))
	fmt.Fprintln(c.out, c.cyan("╚══════════════════════════════════════════╝"))
	fmt.Fprintln(c.out)
}

func (c *Commander) showStages() {
	fmt.Fprintln(c.out, c.blue("Stages:"))
	for i, s := range pipeline.AllStages {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, s.Description())
	}
}

// Menu prints the stages, reads one selection line and runs it for the given
// profiles.
func (c *Commander) Menu(ctx context.Context, profiles []string) error {
	c.printWelcome()
	c.showStages()
	fmt.Fprint(c.out, c.yellow("\nStage numbers to run, comma-separated (Enter runs all): "))

	reader := bufio.NewReader(c.in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read selection: %w", err)
	}

	stages, err := ParseSelection(line, pipeline.AllStages)
	if err != nil {
		fmt.Fprintf(c.out, "%s %v\n", c.red("✗"), err)
		return err
	}
	return c.Run(ctx, profiles, stages)
}

// Run executes stages and prints one summary line per stage run.
func (c *Commander) Run(ctx context.Context, profiles []string, stages []pipeline.Stage) error {
	rec := metrics.NewRecorder()
	runner := pipeline.New(c.cfg, c.log, pipeline.WithMetrics(rec))

	start := time.Now()
	err := runner.Run(ctx, profiles, stages)
	c.printSummary(runner.Jobs().Summary(), time.Since(start))
	return err
}

func (c *Commander) printSummary(summary []jobs.StageSummary, elapsed time.Duration) {
	fmt.Fprintln(c.out)
	for _, s := range summary {
		switch s.Status {
		case jobs.JobCompleted:
			fmt.Fprintf(c.out, "%s %-8s %-6s %s\n", c.green("✓"), s.Stage, s.Profile, s.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(c.out, "%s %-8s %-6s %s\n", c.red("✗"), s.Stage, s.Profile, s.Error)
		}
	}
	fmt.Fprintf(c.out, "%s\n", c.cyan(fmt.Sprintf("Total time: %s", elapsed.Round(time.Millisecond))))
}
