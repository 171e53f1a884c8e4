package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"simplecal/internal/backup"
	"simplecal/internal/config"
	appLog "simplecal/internal/log"
	"simplecal/internal/storage"
	"simplecal/internal/store"
	"simplecal/internal/web"
)

// flagConfig holds CLI flag values; flags override the config file.
type flagConfig struct {
	configPath string
	listen     string
	dataDir    string
	backupNow  bool
	debug      bool
}

func main() {
	appLog.Info("simplecal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataDir != "" {
		conf.DataDir = flags.dataDir
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_dir", conf.DataDir,
		"storage", conf.Storage,
		"backup_cron", conf.BackupCron,
		"backup_keep", conf.BackupKeep,
		"basic_auth", conf.BasicAuth != nil,
	)

	kv, err := storage.Open(conf.Storage, conf.DataDir)
	if err != nil {
		appLog.Error("failed to open storage", err, "backend", conf.Storage)
		os.Exit(1)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			appLog.Warn("closing storage", "err", err)
		}
	}()

	st := store.New(kv)
	if err := st.Load(); err != nil {
		appLog.Error("failed to load persisted state", err)
		os.Exit(1)
	}
	appLog.Info("state loaded", "events", len(st.Events()), "theme", st.Theme())

	runner := backup.New(st, filepath.Join(conf.DataDir, "backups"), conf.BackupKeep)

	if flags.backupNow {
		path, err := runner.RunOnce()
		if err != nil {
			appLog.Error("backup failed", err)
			os.Exit(1)
		}
		appLog.Info("backup written", "path", path)
		return
	}

	if err := runner.Start(conf.BackupCron); err != nil {
		appLog.Error("failed to schedule backups", err, "spec", conf.BackupCron)
		os.Exit(1)
	}
	defer runner.Stop()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	srv := web.NewServer(conf, st, runner, flags.debug)
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("HTTP server listening", "addr", "http://"+conf.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			appLog.Warn("HTTP shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("simplecal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataDir, "data-dir", "", "Data directory (overrides config if set)")
	flag.BoolVar(&cfg.backupNow, "backup", false, "Write one backup of the event collection and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
