package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/agrolog/apollo/internal/audit"
	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/llm"
	"github.com/agrolog/apollo/internal/metrics"
	"github.com/agrolog/apollo/internal/server"
)

func runServe(ctx context.Context, cfg config.Config, args []string) error {
	fs := newFlagSet("serve", os.Stderr)
	addr := fs.String("addr", cfg.Server.Addr(), "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	eng, err := openEngine(cfg.Engine)
	if err != nil {
		return err
	}
	defer eng.Close()

	trail, err := audit.Open(cfg.Audit)
	if err != nil {
		return err
	}
	deps := server.Deps{
		Classifier:     eng,
		Metrics:        metrics.New(),
		Logger:         slog.Default(),
		Version:        config.Version,
		EmbeddingDim:   eng.Dim(),
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if trail != nil {
		defer func() {
			if err := trail.Close(); err != nil {
				slog.Warn("audit close failed", "error", err)
			}
			if n := trail.Dropped(); n > 0 {
				slog.Warn("audit records dropped", "count", n)
			}
		}()
		deps.Audit = trail
		go rotateOnHangup(ctx, trail)
		slog.Info("audit trail enabled", "file", cfg.Audit.File, "webhook", cfg.Audit.WebhookURL != "", "detail", cfg.Audit.Detail)
	}
	if cfg.LLM.Enabled() {
		deps.Extractor = llm.New(cfg.LLM)
		slog.Info("llm delegation enabled", "model", cfg.LLM.Model, "base_url", cfg.LLM.BaseURL)
	} else {
		slog.Info("llm delegation disabled, OPENAI_API_KEY not set")
	}

	slog.Info("apollo starting", "version", config.Version, "addr", *addr)
	return server.ListenAndServe(ctx, *addr, server.Setup(deps), cfg.Server.ShutdownTimeout)
}

// rotateOnHangup starts a new audit file on SIGHUP, for external log shippers.
func rotateOnHangup(ctx context.Context, trail *audit.Trail) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := trail.Rotate(); err != nil {
				slog.Error("audit rotate failed", "error", err)
				continue
			}
			slog.Info("audit file rotated")
		}
	}
}
