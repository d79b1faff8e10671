package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/pipegridgo/internal/app"
	"github.com/specialistvlad/pipegridgo/internal/cli"
	"github.com/specialistvlad/pipegridgo/internal/hcl"
)

// main is the entrypoint for the pipegridgo application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineApp, err := app.NewApp(outW, appConfig, hcl.NewLoader())
	if err != nil {
		return err
	}

	if appConfig.Watch {
		if err := pipelineApp.Watch(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	rep, err := pipelineApp.Run(ctx)
	if err != nil {
		return err
	}
	if rep.Failed() {
		_, failed, _ := rep.Counts()
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%d instantiation(s) failed", failed)}
	}
	return nil
}
