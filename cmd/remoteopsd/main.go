// remoteopsd hosts the execution side of the remote operations channel:
// an HTTP endpoint that runs linearized programs against the provider
// object registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/quartzui/remoteops/server"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing remoteopsd.toml")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	verbosity := flag.Int("v", 1, "Log verbosity (0=errors .. 4=debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: remoteopsd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the remote operations executor.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  remoteopsd                         # Serve on the configured address\n")
		fmt.Fprintf(os.Stderr, "  remoteopsd -listen :9000 -v 2     # Override address, chattier logs\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cfg, err := server.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	srv := server.New(cfg, server.NewObjectStore())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
}
