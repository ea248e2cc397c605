//go:build unix

// Command jobclient runs a single command under a token from the GNU make
// jobserver advertised in MAKEFLAGS:
//
//	jobclient [-timeout 30s] -- cc -c foo.c
//
// It acquires one token (waiting if the pool is empty), runs the command
// with stdio passed through, and returns every token before exiting. With
// no command it just reports whether a jobserver is reachable. Without a
// jobserver in the environment the command runs immediately.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"jobserver"
	"jobserver/pkg/logx"
)

func main() {
	var logLevel string
	var timeout time.Duration
	flag.StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	flag.DurationVar(&timeout, "timeout", 0, "max time to wait for a token (0 = wait forever)")
	flag.Parse()

	log := logx.NewConsole(logLevel).With(logx.String("comp", "jobclient"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := jobserver.NewFromEnv(log)

	args := flag.Args()
	if len(args) == 0 {
		status(client)
		_ = client.Close()
		return
	}

	code, err := run(ctx, client, timeout, args)
	if err != nil {
		log.Error("jobclient", logx.Err(err))
	}

	// Tokens must go back to the pool on every exit path.
	_ = client.Close()
	os.Exit(code)
}

func status(c *jobserver.Client) {
	if !c.Enabled() {
		fmt.Println("jobserver: disabled (no --jobserver-auth in MAKEFLAGS)")
		return
	}
	desc := c.Descriptor()
	fmt.Printf("jobserver: enabled (%s, %s)\n", desc.Kind(), desc.Raw)
}

func run(ctx context.Context, c *jobserver.Client, timeout time.Duration, args []string) (int, error) {
	acqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := c.WaitAcquire(acqCtx); err != nil {
		return 1, fmt.Errorf("acquire token: %w", err)
	}
	defer c.Release()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}
