package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	medprocedure "github.com/nanuguru/Med-Procedure"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/internal/config"
	"github.com/nanuguru/Med-Procedure/logging"
	"github.com/nanuguru/Med-Procedure/tracing"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "medprocedure",
		Usage:   "Clinical procedure lookup for Hospital and Home settings",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load (default .env)"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			runCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd starts the HTTP server.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the REST API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides PORT)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.StringSlice("env-file")...)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if p := c.Int("port"); p > 0 {
				cfg.Port = p
			}

			logger, flush, err := newLogger(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer flush()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := tracing.Init(ctx, tracing.Config{
				Enabled:     cfg.OTelEnabled,
				ServiceName: cfg.OTelServiceName,
				Endpoint:    cfg.OTelEndpoint,
				Insecure:    true,
				Logger:      logger,
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			svc := newService(cfg, logger)

			srv := &http.Server{
				Addr:         cfg.Addr(),
				Handler:      svc.Handler(cfg.APIPrefix),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting Med Procedure server", "addr", srv.Addr, "prefix", cfg.APIPrefix)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
			case <-ctx.Done():
			}
			logger.Info("Shutting down Med Procedure server")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown error", "error", err)
			}
			if err := svc.Shutdown(shutdownCtx); err != nil {
				logger.Error("Engine shutdown error", "error", err)
			}
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("Tracing shutdown error", "error", err)
			}

			logger.Info("Server stopped")
			return nil
		},
	}
}

// runCmd performs one lookup and prints the result.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Look up a procedure and print it",
		ArgsUsage: "<service name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "setting", Aliases: []string{"s"}, Value: "Hospital", Usage: "Hospital or Home"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute, Usage: "Give up after this long"},
			&cli.BoolFlag{Name: "json", Usage: "Print the full session as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("service name is required", 1)
			}
			setting, err := core.ParseSetting(c.String("setting"))
			if err != nil {
				return outputError(err)
			}

			cfg, err := config.Load(c.StringSlice("env-file")...)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			cfg.LogFormat = "text"
			logger, flush, err := newLogger(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer flush()

			svc := newService(cfg, logger)
			defer func() { _ = svc.Shutdown(context.Background()) }()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			s, err := svc.LookupSync(ctx, c.Args().First(), setting)
			if c.Bool("json") {
				if jerr := outputJSON(c.App.Writer, s); jerr != nil {
					return jerr
				}
			}
			if err != nil {
				return outputError(err)
			}
			if !c.Bool("json") && s.Result != nil {
				fmt.Fprintln(c.App.Writer, s.Result.DetailedProcedure)
			}
			return nil
		},
	}
}

func newService(cfg *config.Config, logger logging.Logger) *medprocedure.Service {
	adapters := medprocedure.AdaptersFromConfig(cfg, logger)
	if len(adapters) == 0 {
		logger.Warn("No adapters configured; only the memory bank will be searched")
	}
	return medprocedure.New(func(o *medprocedure.Options) {
		o.EngineConfig = medprocedure.EngineConfigFromConfig(cfg)
		o.Adapters = adapters
		o.SessionTTL = cfg.SessionTTL
		o.MemoryBankSize = cfg.MemoryBankSize
		o.Logger = logger
	})
}

// newLogger builds the configured backend. The returned func flushes it.
func newLogger(cfg *config.Config) (logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.LogLevel)
	switch cfg.LogBackend {
	case "zap":
		z, err := logging.NewZapProduction(level)
		if err != nil {
			return nil, nil, fmt.Errorf("create zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	default:
		return logging.NewSlogLogger(level, cfg.LogFormat, false).WithComponent("medprocedure"), func() {}, nil
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the terminal.
func outputError(err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		return cli.Exit(fmt.Sprintf("[%s] %s", e.Kind, e.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
