package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/urfave/cli/v2"

	"luckydraw/internal/config"
	"luckydraw/internal/handlers"
	"luckydraw/internal/live"
	"luckydraw/internal/metrics"
	"luckydraw/internal/services"
	"luckydraw/internal/spreadsheet"
)

func main() {
	app := &cli.App{
		Name:  "luckydraw",
		Usage: "run prize draws for events",
		Commands: []*cli.Command{
			serveCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the operator API and display feed",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides the configuration"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(c.Context, cfg)
		},
	}
}

func initLogger(cfg config.LogConfig) (*logger.Logger, func(), error) {
	if cfg.File == "" {
		return logger.Init("luckydraw", cfg.Verbose, false, io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger.Init("luckydraw", cfg.Verbose, false, f), func() { f.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	lg, closeLog, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	defer lg.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize the Lottery Service
	var recorder services.Recorder
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m := metrics.New()
		recorder, metricsHandler = m, m.Handler()
	}
	lotteryService := services.NewLotteryService(recorder)

	// 2. Start the live display hub
	hub := live.NewHub()
	go hub.Run(ctx)

	// 3. Initialize the HTTP Handler and router
	gin.SetMode(cfg.Server.GinMode)
	httpHandler := handlers.NewHTTPHandler(lotteryService, hub, cfg.Server.MaxUploadBytes)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handlers.NewRouter(httpHandler, metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start the background janitor to clean up inactive sessions
	go func() {
		ticker := time.NewTicker(cfg.Session.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := lotteryService.CleanUpInactiveSessions(cfg.Session.IdleTimeout)
				logger.Infof("Performed cleanup of inactive sessions, removed %d.", removed)
			}
		}
	}()

	// 5. Run the server
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "parse a participant file and report what would be imported",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "show", Value: 5, Usage: "number of participants to print"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one file", 2)
			}
			return inspect(c.App.Writer, c.Args().First(), c.Int("show"))
		},
	}
}

func inspect(w io.Writer, path string, show int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	report, err := spreadsheet.ReadParticipants(spreadsheet.NewFactory(), path, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "participants: %d\n", len(report.Participants))
	fmt.Fprintf(w, "header row:   %t\n", report.HeaderDetected)
	fmt.Fprintf(w, "skipped:      %d (short rows %d, blank names %d)\n",
		report.SkippedTotal(), report.Skipped[spreadsheet.SkipShortRow], report.Skipped[spreadsheet.SkipBlankName])
	for i, p := range report.Participants {
		if i >= show {
			break
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", p.ID, p.Name, p.Department)
	}
	return nil
}
