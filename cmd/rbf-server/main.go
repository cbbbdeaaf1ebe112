// Command rbf-server exposes RBF evaluation over HTTP.
//
// Usage:
//
//	go run ./cmd/rbf-server -port 8080 -backend bytecode -log-level debug
//
// Evaluate endpoint: POST /evaluate
// Kernel listing:    GET  /kernels
// Health endpoint:   GET  /health
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/rbf"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	backendName := flag.String("backend", rbf.Closure.String(), "Compilation backend: closure or bytecode")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	level, err := zap.ParseAtomicLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	backend, err := rbf.ParseBackend(*backendName)
	if err != nil {
		logger.Fatal("invalid backend", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("rbf server listening",
		zap.String("addr", addr),
		zap.Stringer("backend", backend),
		zap.Strings("endpoints", []string{"POST /evaluate", "GET /kernels", "GET /health"}),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(logger, backend).routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
