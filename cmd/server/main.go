package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chungindustries/cpm-registry/internal/api/openapi"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/config"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/logging"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Flags override the environment.
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	storage := flag.String("storage", cfg.Storage.Dir, "Storage directory")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	writeSpec := flag.Bool("openapi", false, "Write the OpenAPI document to [path] (default API_SPEC_PATH) and exit")
	verify := flag.Bool("verify", false, "Check that every indexed version has its tarball and exit")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Storage.Dir = *storage
	cfg.Logging.Development = *dev
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	if *writeSpec {
		path := cfg.Docs.SpecPath
		if flag.NArg() > 0 {
			path = flag.Arg(0)
		}
		return writeOpenAPI(logger, cfg, path)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return 1
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *verify {
		return verifyStorage(ctx, logger, srv)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return 1
	}
	logger.Info("Server stopped")
	return 0
}

func writeOpenAPI(logger *logging.Logger, cfg *config.Config, path string) int {
	doc, err := openapi.Build(openapi.DefaultInfo(server.Version, cfg.Server.PublicURL))
	if err != nil {
		logger.Error("Failed to build API document", zap.Error(err))
		return 1
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		logger.Error("Failed to write API document", zap.String("path", path), zap.Error(err))
		return 1
	}
	logger.Info("Wrote API document", zap.String("path", path))
	return 0
}

func verifyStorage(ctx context.Context, logger *logging.Logger, srv *server.Server) int {
	report, err := srv.Service().Verify(ctx)
	if err != nil {
		logger.Error("Verification failed", zap.Error(err))
		return 1
	}

	logger.Info("Verified storage",
		zap.Int("packages", report.Packages),
		zap.Int("versions", report.Versions),
		zap.Strings("orphaned", report.Orphaned),
		zap.Strings("missing", report.Missing),
	)
	if !report.Consistent() {
		return 1
	}
	return 0
}
