package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	cliplugins "usd/internal/cli_plugins"
	"usd/internal/util/logger/handlers/slogpretty"
	"usd/pkg/cli"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	// cancelled on the first signal, a second one kills the process
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &cliplugins.Deps{NewLogger: setupLogger}

	app := cli.NewCLI(ctx, "usd", "Announce and discover services over IP multicast")
	app.Root().PersistentFlags().StringVarP(&deps.ConfigPath, "config", "c", "", "path to config file (or CONFIG_PATH)")
	cliplugins.Register(app, deps)

	if err := app.Run(nil); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

// setupLogger writes logs to stderr so command output on stdout stays clean
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		log.Warn("unknown env, using prod logging", slog.String("env", env))
	}
	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	}

	handler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(handler)
}
