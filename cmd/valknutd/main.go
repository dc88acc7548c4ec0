// Command valknutd is the MCP tool-protocol entry point: load a config
// document, build the base pipeline configuration, and serve the seven
// tool methods over stdio until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valknut-dev/valknut/internal/rpc"
	"github.com/valknut-dev/valknut/internal/vkconfig"
	"github.com/valknut-dev/valknut/internal/vklog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "valknutd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a valknut config document (YAML or KDL); defaults built in if unset")
		debugFlag  = flag.Bool("debug", false, "write stage diagnostics to stderr (suppressed automatically once the stdio transport starts)")
	)
	flag.Parse()

	if *debugFlag {
		vklog.SetOutput(os.Stderr)
	}

	cfg := vkconfig.Default()
	if *configPath != "" {
		loaded, err := vkconfig.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	server := rpc.NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		// Stdio carries the JSON-RPC stream itself; any stray log output
		// on stdout would corrupt it, so suppress vklog before the
		// transport starts reading.
		vklog.SetRPCMode(true)
		errChan <- server.Run(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		vklog.SetRPCMode(false)
		vklog.Stage("shutdown", "received signal %v, shutting down", sig)
		cancel()
		select {
		case <-errChan:
		case <-time.After(2 * time.Second):
		}
		return nil
	}
}
