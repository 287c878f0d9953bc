package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/honeytrace/honeypot/internal/api"
	"github.com/honeytrace/honeypot/internal/capture"
	"github.com/honeytrace/honeypot/internal/config"
	"github.com/honeytrace/honeypot/internal/emulator"
	"github.com/honeytrace/honeypot/internal/lifecycle"
	"github.com/honeytrace/honeypot/internal/notify"
	"github.com/honeytrace/honeypot/internal/state"
	"github.com/honeytrace/honeypot/internal/storage"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	flags := pflag.NewFlagSet("honeypot", pflag.ExitOnError)
	flags.IntVar(&cfg.SSHPort, "ssh-port", cfg.SSHPort, "SSH honeypot port")
	flags.IntVar(&cfg.TelnetPort, "telnet-port", cfg.TelnetPort, "Telnet honeypot port")
	flags.StringVar(&cfg.ControlBindAddr, "control-addr", cfg.ControlBindAddr, "control API listen address")
	flags.BoolVar(&cfg.Autostart, "autostart", cfg.Autostart, "start the listeners at boot")
	_ = flags.Parse(os.Args[1:])
	if err := cfg.Validate(); err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("honeypot exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	store, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	notes, err := notify.OpenGormStore(cfg.NotifySQLitePath)
	if err != nil {
		return err
	}
	defer notes.Close()

	sinks := []notify.Sink{notes}
	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, notify.AMQPOptions{Logger: logger})
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}
	notifier := notify.NewService(logger, sinks...)

	history, err := state.NewManager(cfg.StatePath)
	if err != nil {
		return err
	}
	if err := history.Load(); err != nil {
		logger.Warn("state load failed, starting with empty history", "error", err)
	}

	recorder := capture.NewRecorder(store, notifier, logger)
	manager := capture.NewManager(recorder, emulator.New(), logger)
	ctl := lifecycle.New(manager, cfg.Capture(), lifecycle.Options{
		Notifier: notifier,
		History:  history,
		Records:  store,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Autostart {
		if _, err := ctl.Start(ctx); err != nil {
			// The control API stays up so an operator can fix the port and retry.
			logger.Error("autostart failed", "error", err)
		}
	}

	server := &http.Server{
		Addr:              cfg.ControlBindAddr,
		Handler:           api.NewRouter(cfg.ControlToken, ctl, logger, api.WithRecords(store), api.WithNotifications(notes)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("control api listening", "addr", cfg.ControlBindAddr, "auth", cfg.ControlToken != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	ctl.Stop(shutdownCtx)
	if err := manager.Wait(shutdownCtx); err != nil {
		logger.Warn("sessions still open at shutdown", "active", manager.ActiveSessions(), "error", err)
	}
	if n := recorder.SaveFailures(); n > 0 {
		logger.Warn("record saves failed during run", "count", n)
	}
	return nil
}
