package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/icepuma/keron/internal/applier"
	"github.com/icepuma/keron/internal/config"
	"github.com/icepuma/keron/internal/discovery"
	"github.com/icepuma/keron/internal/evaluator"
	"github.com/icepuma/keron/internal/graph"
	"github.com/icepuma/keron/internal/logging"
	"github.com/icepuma/keron/internal/manifest"
	"github.com/icepuma/keron/internal/packagemgr"
	"github.com/icepuma/keron/internal/planner"
	"github.com/icepuma/keron/internal/reporter"
	"github.com/icepuma/keron/internal/secretprovider"
	"github.com/icepuma/keron/internal/source"
)

var (
	flagExecute bool
	flagFormat  string
	flagColor   string
)

var applyCmd = &cobra.Command{
	Use:   "apply <source>",
	Short: "Plan (and optionally execute) a keron source against the local machine",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&flagExecute, "execute", false, "apply the plan instead of just reporting it")
	applyCmd.Flags().StringVar(&flagFormat, "format", "", "output format: text or json (default from config)")
	applyCmd.Flags().StringVar(&flagColor, "color", "", "color mode: auto, always, or never (default from config)")
}

func runApply(cmd *cobra.Command, args []string) error {
	descriptor := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	noHints, _ := cmd.Flags().GetBool("no-hints")

	if err := config.Init(cmd.Root(), ""); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	log := logging.New(logging.Default(verbose))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			log.Info("received interrupt, cancelling")
			cancel()
		}
	}()
	defer signal.Stop(sigCh)

	start := time.Now()

	cloneCtx, cloneCancel := context.WithTimeout(ctx, config.CloneTimeout())
	defer cloneCancel()
	resolved, err := source.Resolve(cloneCtx, descriptor)
	if err != nil {
		return err
	}
	defer func() { _ = resolved.Cleanup() }()

	_ = config.Init(nil, resolved.Root)

	format := flagFormat
	if format == "" {
		format = config.DefaultFormat()
	}
	color := flagColor
	if color == "" {
		color = config.DefaultColor()
	}
	switch reporter.ColorMode(color) {
	case reporter.ColorAuto, reporter.ColorAlways, reporter.ColorNever:
	default:
		return fmt.Errorf("invalid --color %q: want auto, always, or never", color)
	}

	secretprovider.SetPassCLIPath(config.PassCLIPath())
	if path := config.PackageManagerPath("brew"); path != "" {
		packagemgr.SetBrewPath(path)
	}

	ids, err := discovery.Discover(resolved.Root)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	discovered := make(map[manifest.ID]bool, len(ids))
	for _, id := range ids {
		discovered[id] = true
	}

	manifests := make([]*manifest.Manifest, 0, len(ids))
	for _, id := range ids {
		m, err := evaluator.Evaluate(id, evaluator.Options{Discovered: discovered})
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", id, err)
		}
		manifests = append(manifests, m)
	}

	ordered, err := graph.Build(manifests)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	plan := planner.Plan(ctx, ordered, planner.Services{})

	var applyResult *manifest.ApplyResult
	if flagExecute {
		result := applier.Apply(ctx, plan, applier.Services{Log: log})
		applyResult = &result
	}

	if err := reporter.Report(plan, applyResult, time.Since(start), reporter.Options{
		Format:  reporter.Format(format),
		Color:   reporter.ColorMode(color),
		Verbose: verbose,
		NoHints: noHints,
		Out:     cmd.OutOrStdout(),
	}); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if code := reporter.ExitCode(plan, applyResult); code != 0 {
		// os.Exit skips deferred calls, so release the source first.
		_ = resolved.Cleanup()
		os.Exit(code)
	}
	return nil
}
