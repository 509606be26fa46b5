// Spins up the twine list server, compatible w/ the Redis protocol, or a console menu with -repl.

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/nobletooth/twine/pkg/config"
	"github.com/nobletooth/twine/pkg/port"
	"github.com/nobletooth/twine/pkg/repl"
	"github.com/nobletooth/twine/pkg/store"
	"github.com/nobletooth/twine/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	printVersion   = flag.Bool("print_version", false, "Print the version and exit.")
	replMode       = flag.Bool("repl", false, "Run the console menu over stdin instead of the server.")
	metricsAddress = flag.String("metrics_address", "", "The ip:port to serve Prometheus metrics on; empty disables it.")
)

// serveMetrics exposes the default Prometheus registry until `ctx` is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	slog.Info("Serving metrics.", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server stopped.", "error", err)
	}
}

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Twine build info.", utils.BuildInfo()...)
		return
	}

	if *replMode {
		options := repl.Options{Interactive: isatty.IsTerminal(os.Stdin.Fd())}
		if err := repl.Run(os.Stdin, os.Stdout, options); err != nil {
			slog.Error("Console session stopped.", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *metricsAddress != "" {
		go serveMetrics(ctx, *metricsAddress)
	}

	if err := port.RunRedisServer(ctx, store.NewRegistry()); err != nil {
		slog.Error("Twine server stopped.", "error", err)
		os.Exit(1)
	}
	slog.Info("Twine server stopped.", utils.BuildInfo()...)
}
