// Command app serves the grading API.
//
//	export OPENAI_API_KEY=...
//	go run ./cmd/app -config config/grader.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Protocol-Lattice/go-grader/src/app"
	"github.com/Protocol-Lattice/go-grader/src/config"
	"github.com/Protocol-Lattice/go-grader/src/extract"
	"github.com/Protocol-Lattice/go-grader/src/logging"
	"github.com/Protocol-Lattice/go-grader/src/server"
	"github.com/Protocol-Lattice/go-grader/src/store"
)

var flagConfig = flag.String("config", "", "Path to a config file (default: grader.yaml in ./config or .)")

func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.NewStdout(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := store.New(ctx, cfg.Store)
	if err != nil {
		logger.Error("open result store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer results.Close(context.Background())

	a := app.New(cfg, logger)
	extractor := extract.NewService()
	if cfg.Server.MaxUploadBytes > 0 {
		extractor.MaxBytes = cfg.Server.MaxUploadBytes
	}

	api := server.NewAPI(a.Coordinator, a.Estimator, results, extractor, a.Registry.Names(), logger)
	srv := server.NewServer(cfg.Server, api, logger)

	go func() {
		logger.Info("listening", "addr", srv.Addr, "store", cfg.Store.Driver, "priority", cfg.Pipeline.Priority)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
}
