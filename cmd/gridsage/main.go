package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridsage/gridsage/pkg/history"
	"github.com/gridsage/gridsage/pkg/load"
	"github.com/gridsage/gridsage/pkg/log"
	"github.com/gridsage/gridsage/pkg/optimizer"
	"github.com/gridsage/gridsage/pkg/patterns"
	"github.com/gridsage/gridsage/pkg/pricing"
	"github.com/gridsage/gridsage/pkg/server"
	"github.com/gridsage/gridsage/pkg/solar"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

// priceSource delegates to the REST tariff when one is configured and
// to the synthetic curve otherwise. The choice happens after flags are
// parsed.
type priceSource struct {
	pricing.Provider
	synthetic *pricing.Synthetic
	rest      *pricing.REST
}

func (p *priceSource) resolve() {
	if p.rest.Validate() == nil {
		p.Provider = p.rest
		return
	}
	p.Provider = p.synthetic
}

func main() {
	// init packages
	h := history.Configured()
	synthetic := pricing.Configured()
	rest := pricing.ConfiguredREST()
	d := patterns.Configured()
	sp := solar.Configured()
	lf := load.New()
	o := optimizer.Configured()

	// prefer the REST tariff when one is configured, otherwise fall back
	// to the synthetic curve
	prices := &priceSource{synthetic: synthetic, rest: rest}

	// init server
	srv := server.Configured(h, h, prices, d, sp, lf, o)

	// parse flags
	lflag.Configure()
	prices.resolve()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := h.Validate(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid history configuration", "error", err)
		os.Exit(1)
	}

	// Run blocks until the context is canceled or an error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
