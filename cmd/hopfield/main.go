// cmd/hopfield/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Exit(exitCode(err, os.Stderr))
	}
}

// exitCode reports err and maps it to a process status: 2 for usage errors,
// 1 otherwise. A bare errUsage means usage text was already printed.
func exitCode(err error, stderr io.Writer) int {
	if errors.Is(err, errUsage) {
		if err != errUsage {
			fmt.Fprintf(stderr, "hopfield: %v\nRun 'hopfield -h' for usage.\n", err)
		}
		return 2
	}
	log.Error().Err(err).Msg("Command failed")
	return 1
}

// run parses flags, loads the configuration and dispatches one command.
func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hopfield", flag.ContinueOnError)
	configFile := fs.String("config", "config/default.yaml", "Configuration file path")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	dbPath := fs.String("db", "", "Pattern database path (overrides memory.path)")
	addr := fs.String("addr", "", "API listen address (overrides api.addr)")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	config, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		config.Memory.Path = *dbPath
	}
	if *addr != "" {
		config.API.Addr = *addr
	}
	setupLogger(config.Logging, *verbose)

	if fs.NArg() == 0 {
		usage(fs)
		return errUsage
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(fs.Output(), "unknown command %q\n", name)
		usage(fs)
		return errUsage
	}

	if !cmd.local {
		return cmd.run(ctx, &app{config: config, out: out}, rest)
	}
	a, err := openApp(ctx, config, out)
	if err != nil {
		return err
	}
	defer a.Close()
	return cmd.run(ctx, a, rest)
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: hopfield [flags] <command> [args]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-34s %s\n", name+" "+commands[name].args, commands[name].help)
	}
	fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
}

func setupLogger(config LoggingConfig, verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	}
	log.Logger = log.Output(output)
}

// setupSignalHandler cancels ctx on SIGINT/SIGTERM and forces an exit if
// shutdown has not finished shortly after.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()

		time.Sleep(shutdownTimeout + 5*time.Second)
		log.Error().Msg("Force shutdown after timeout")
		os.Exit(1)
	}()
}
