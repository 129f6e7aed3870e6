// cmd/hopfield/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/evaluation"
	"github.com/lumix-ai/hopfield/internal/learning"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/monitoring"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

// app - wired components shared by the commands
type app struct {
	config  *Config
	out     io.Writer
	store   *memory.Store
	metrics *monitoring.Metrics
	trainer *learning.Trainer
}

type command struct {
	args  string
	help  string
	local bool // needs the pattern store and a trained network
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"serve":    {"", "Run the HTTP/WebSocket API", true, cmdServe},
	"add":      {"<name> <bits>", "Store a pattern and retrain", true, cmdAdd},
	"list":     {"", "List stored patterns", true, cmdList},
	"delete":   {"<name>", "Delete a stored pattern and retrain", true, cmdDelete},
	"recall":   {"<bits>", "Relax a probe to the nearest stored pattern", true, cmdRecall},
	"energy":   {"<bits>", "Energy of a state under the current weights", true, cmdEnergy},
	"noise":    {"<bits> [level]", "Flip a fraction of the cells of a pattern", false, cmdNoise},
	"export":   {"<file>", "Write stored patterns to a bundle", true, cmdExport},
	"import":   {"<file>", "Load patterns from a bundle and retrain", true, cmdImport},
	"capacity": {"", "Measure recall quality against load", false, cmdCapacity},
	"remote":   {"<list|add|train|recall|energy> [args]", "Run a command against a running server", false, cmdRemote},
}

var commandOrder = []string{
	"serve", "add", "list", "delete", "recall", "energy", "noise",
	"export", "import", "capacity", "remote",
}

// openApp wires the store, trainer and metrics and trains on the stored patterns.
func openApp(ctx context.Context, config *Config, out io.Writer) (*app, error) {
	network, err := core.NewNetwork(config.Network.Size)
	if err != nil {
		return nil, err
	}
	if p := config.Memory.Path; p != "" && p != ":memory:" && !strings.HasPrefix(p, "file:") {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := memory.Open(config.Memory, config.Network.Size)
	if err != nil {
		return nil, err
	}
	metrics := monitoring.NewMetrics()
	trainer, err := learning.NewTrainer(network, store, metrics, config.Learning)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := trainer.Retrain(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return &app{config: config, out: out, store: store, metrics: metrics, trainer: trainer}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) grid(p core.Pattern) {
	fmt.Fprintln(a.out, patterns.Grid(p, a.config.Network.GridWidth))
}

func argCount(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%w: expected %d..%d arguments, got %d", errUsage, lo, hi, len(args))
	}
	return nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 2, 2); err != nil {
		return err
	}
	p, err := patterns.Parse(args[1])
	if err != nil {
		return err
	}
	entry, err := a.trainer.AddPattern(ctx, args[0], p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stored %q (#%d)\n", entry.Name, entry.ID)
	a.grid(entry.Pattern)
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}
	entries, err := a.store.List(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"ID", "Name", "Active", "Bits", "Created"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			e.Name,
			strconv.Itoa(e.Pattern.Sum()),
			patterns.Format(e.Pattern),
			e.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.SetFooter([]string{"", "", "", "Total", strconv.Itoa(len(entries))})
	table.Render()
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	if err := a.trainer.DeletePattern(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %q\n", args[0])
	return nil
}

func cmdRecall(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	probe, err := patterns.Parse(args[0])
	if err != nil {
		return err
	}
	res, err := a.trainer.Recall(probe, a.config.Network.MaxIterations)
	if err != nil {
		return err
	}
	summary, err := a.trainer.Summary(res)
	if err != nil {
		return err
	}
	a.grid(res.Pattern)
	fmt.Fprintln(a.out, patterns.Format(res.Pattern))
	fmt.Fprintln(a.out, summary)
	return nil
}

func cmdEnergy(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	p, err := patterns.Parse(args[0])
	if err != nil {
		return err
	}
	e, err := a.trainer.Energy(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Energy: %.3f\n", e)
	return nil
}

func cmdNoise(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 2); err != nil {
		return err
	}
	p, err := patterns.Parse(args[0])
	if err != nil {
		return err
	}
	level := a.config.Noise.Level
	if len(args) == 2 {
		if level, err = strconv.ParseFloat(args[1], 64); err != nil {
			return fmt.Errorf("%w: bad noise level %q", errUsage, args[1])
		}
	}
	seed := a.config.Noise.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	noisy, flipped, err := patterns.AddNoise(rand.New(rand.NewSource(seed)), p, level)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, patterns.Format(noisy))
	log.Info().Int("flipped", flipped).Float64("level", level).Msg("Noise added")
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	n, err := a.store.Export(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d patterns to %s\n", n, args[0])
	return nil
}

func cmdImport(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	// a damaged bundle still leaves the records read before it in the store
	n, importErr := a.store.Import(ctx, f)
	if n > 0 {
		if err := a.trainer.Retrain(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Imported %d patterns from %s\n", n, args[0])
	if importErr != nil {
		return fmt.Errorf("import stopped after %d patterns: %w", n, importErr)
	}
	return nil
}

func cmdCapacity(ctx context.Context, a *app, args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}
	cfg := a.config.Evaluation
	bar := progressbar.NewOptions(cfg.MaxLoad*cfg.Trials,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("capacity N=%d", a.config.Network.Size)),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	report, err := evaluation.RunCapacity(ctx, a.config.Network.Size, cfg, func() { bar.Add(1) })
	bar.Finish()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"Load", "Load/N", "Trials", "Recovered", "Rate", "Mean sweeps", "Exhausted"})
	for _, r := range report.Results {
		table.Append([]string{
			strconv.Itoa(r.Load),
			fmt.Sprintf("%.3f", float64(r.Load)/float64(report.Size)),
			strconv.Itoa(r.Trials),
			strconv.Itoa(r.Recovered),
			fmt.Sprintf("%.0f%%", 100*r.RecoveryRate()),
			fmt.Sprintf("%.2f", r.MeanSweeps),
			strconv.Itoa(r.Exhausted),
		})
	}
	table.Render()
	fmt.Fprintf(a.out, "N=%d, %d trials per load, finished in %s\n",
		report.Size, cfg.Trials, report.Duration.Round(time.Millisecond))
	return nil
}
