// cornerknockd watches for corner-knock sequences on a kiosk touch screen
// and announces completed sequences to local subscribers.
//
// The daemon loads its configuration from a TOML, YAML or JSON file, hot
// reloads it when the file changes, and serves a unix-socket IPC surface for
// cornerknockctl. Completed sequences are appended to a tamper-evident audit
// store and emitted as a D-Bus signal on the session bus where one is
// available.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cornerknock/internal/config"
	"cornerknock/internal/ipc"
	"cornerknock/internal/logging"
	"cornerknock/internal/metrics"
	"cornerknock/internal/notify"
	"cornerknock/internal/service"
	"cornerknock/internal/store"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	socketPath := flag.String("socket", "", "override IPC socket path")
	noWatch := flag.Bool("no-watch", false, "disable config hot reload")
	flag.Parse()

	if err := run(*configPath, *logLevel, *socketPath, *noWatch); err != nil {
		fmt.Fprintf(os.Stderr, "cornerknockd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel, socketPath string, noWatch bool) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if socketPath != "" {
		cfg.IPC.SocketPath = socketPath
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logger.Close()
	log := logger.Logger

	log.Info("starting cornerknockd",
		"version", version,
		"config", configPath,
		"sequences", len(cfg.Gesture.Sequences),
	)

	if ipc.IsSocketListening(cfg.IPC.SocketPath) {
		return fmt.Errorf("another daemon is already listening on %s", cfg.IPC.SocketPath)
	}

	// Audit store.
	var auditStore *store.Store
	if cfg.Storage.Enabled {
		secret, err := store.LoadOrCreateSecret(cfg.Storage.SecretPath)
		if err != nil {
			return fmt.Errorf("device secret: %w", err)
		}
		key, err := store.DeriveAuditKey(secret)
		if err != nil {
			return fmt.Errorf("derive audit key: %w", err)
		}
		auditStore, err = store.Open(cfg.Storage.Path, key)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		log.Info("audit store open", "path", cfg.Storage.Path)
	}

	// Notifications: session bus when reachable, log otherwise.
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Notify.DBus {
		if dn, err := notify.NewDBusNotifier(); err == nil {
			notifier = notify.NewMulti(dn, notify.NewLogNotifier(log))
			log.Info("session bus notifications enabled")
		} else {
			log.Warn("session bus unavailable, logging matches instead", "error", err)
		}
	}

	// Metrics.
	var daemonMetrics *metrics.DaemonMetrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := metrics.NewRegistry("cornerknock")
		daemonMetrics = metrics.NewDaemonMetrics(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.HTTPHandler())
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
	}

	svc, err := service.New(cfg, service.Options{
		Version:  version,
		Logger:   log,
		Store:    auditStore,
		Notifier: notifier,
		Metrics:  daemonMetrics,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	// Explicit reload requests re-read the file through the loader.
	reload := func() error {
		next, err := loader.Load()
		if err != nil {
			return err
		}
		return svc.Reload(next)
	}

	// The handler needs the server's subscriber count and the server needs
	// the handler, so the count is resolved through the variable.
	var server *ipc.Server
	handler := service.NewHandler(svc, reload, func() int { return server.SubscriberCount() })
	server = ipc.NewServer(ipc.ServerConfig{
		SocketPath:     cfg.IPC.SocketPath,
		Version:        version,
		MaxConnections: cfg.IPC.MaxConnections,
		Logger:         log,
	}, handler)

	svc.SetBroadcast(server.Broadcast)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer server.Stop()

	// Config hot reload.
	if !noWatch {
		loader.OnChange(func(next *config.Config) {
			if err := svc.Reload(next); err != nil {
				log.Error("config reload failed, keeping previous configuration", "error", err)
			}
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config watch unavailable", "error", err)
		} else {
			defer loader.Close()
			go func() {
				for err := range loader.Errors() {
					log.Warn("config watch", "error", err)
				}
			}()
		}
	}

	// Block until a shutdown signal arrives. SIGHUP triggers a reload.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Info("SIGHUP received, reloading configuration")
			if err := reload(); err != nil {
				log.Error("reload failed", "error", err)
			}
			continue
		}
		log.Info("shutting down", "signal", sig.String())
		break
	}

	if metricsServer != nil {
		metricsServer.Close()
	}
	return nil
}

func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Component = "cornerknockd"
	if cfg.Logging.Level != "" {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		logCfg.Level = level
	}
	if cfg.Logging.Format != "" {
		format, err := logging.ParseFormat(cfg.Logging.Format)
		if err != nil {
			return nil, err
		}
		logCfg.Format = format
	}
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSizeMB > 0 {
		logCfg.MaxSize = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxBackups > 0 {
		logCfg.MaxBackups = cfg.Logging.MaxBackups
	}
	logCfg.RedactSequences = cfg.Logging.RedactSequences

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}
