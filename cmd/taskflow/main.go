package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskflow/internal/config"
	"github.com/mtlprog/taskflow/internal/database"
	"github.com/mtlprog/taskflow/internal/handler"
	"github.com/mtlprog/taskflow/internal/logger"
	"github.com/mtlprog/taskflow/internal/notify"
	"github.com/mtlprog/taskflow/internal/repository"
	"github.com/mtlprog/taskflow/internal/repository/memory"
	"github.com/mtlprog/taskflow/internal/service"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "taskflow",
		Usage: "Task tracker with audit history and change notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.IntFlag{
				Name:    "max-conns",
				Value:   config.DefaultMaxConns,
				Usage:   "Maximum PostgreSQL connections in the pool",
				EnvVars: []string{"DB_MAX_CONNS"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   config.DefaultTimeout,
				Usage:   "Timeout for each storage round",
				EnvVars: []string{"STORAGE_TIMEOUT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(c.String("log-format"), logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server and the outbox relay",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.BoolFlag{
						Name:    "in-memory",
						Usage:   "Keep all state in process memory instead of PostgreSQL",
						EnvVars: []string{"IN_MEMORY"},
					},
					&cli.UintFlag{
						Name:    "conflict-retries",
						Value:   config.DefaultConflictRetries,
						Usage:   "Extra attempts for a mutation after a concurrent write",
						EnvVars: []string{"CONFLICT_RETRIES"},
					},
				}, relayFlags()...),
				Action: runServe,
			},
			{
				Name:   "relay",
				Usage:  "Run only the outbox relay",
				Flags:  relayFlags(),
				Action: runRelay,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func relayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "publisher",
			Value:   config.DefaultPublisher,
			Usage:   "Notification sink (log, pgnotify)",
			EnvVars: []string{"PUBLISHER"},
		},
		&cli.StringFlag{
			Name:    "channel-prefix",
			Value:   config.DefaultChannelPrefix,
			Usage:   "Prefix for pg_notify channel names",
			EnvVars: []string{"CHANNEL_PREFIX"},
		},
		&cli.DurationFlag{
			Name:    "relay-interval",
			Value:   config.DefaultRelayInterval,
			Usage:   "Outbox polling interval",
			EnvVars: []string{"RELAY_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "relay-batch",
			Value:   config.DefaultRelayBatch,
			Usage:   "Events claimed per relay pass",
			EnvVars: []string{"RELAY_BATCH"},
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Value:   config.DefaultMaxAttempts,
			Usage:   "Failed deliveries before an event is parked as dead",
			EnvVars: []string{"MAX_ATTEMPTS"},
		},
	}
}

// connect opens the pool and applies migrations.
func connect(c *cli.Context) (*database.DB, error) {
	databaseURL := c.String("database-url")
	if databaseURL == "" {
		return nil, errors.New("database URL is required (--database-url or DATABASE_URL)")
	}

	db, err := database.New(c.Context, databaseURL, database.WithMaxConns(int32(c.Int("max-conns"))))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(c.Context, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func newPublisher(c *cli.Context, pool *pgxpool.Pool) (notify.Publisher, error) {
	switch c.String("publisher") {
	case config.PublisherLog, "":
		return notify.NewLogPublisher(slog.Default()), nil
	case config.PublisherPGNotify:
		if pool == nil {
			return nil, errors.New("pgnotify publisher requires a database")
		}
		return notify.NewPGNotifyPublisher(pool, c.String("channel-prefix")), nil
	default:
		return nil, fmt.Errorf("unknown publisher %q", c.String("publisher"))
	}
}

func relayConfig(c *cli.Context) notify.RelayConfig {
	cfg := notify.DefaultRelayConfig()
	cfg.Interval = c.Duration("relay-interval")
	cfg.BatchSize = c.Int("relay-batch")
	cfg.MaxAttempts = c.Int("max-attempts")
	return cfg
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	svcCfg := service.DefaultConfig()
	svcCfg.Timeout = c.Duration("timeout")
	if c.IsSet("conflict-retries") {
		svcCfg.ConflictRetries = uint64(c.Uint("conflict-retries"))
	}

	var (
		txRunner    service.TxRunner
		taskRepo    service.TaskStore
		historyRepo service.HistoryStore
		commentRepo service.CommentStore
		outboxRepo  interface {
			service.OutboxStore
			notify.OutboxStore
		}
		pool   *pgxpool.Pool
		pinger handler.Pinger
	)

	if c.Bool("in-memory") {
		store := memory.New()
		txRunner = store
		taskRepo = store.Tasks()
		historyRepo = store.History()
		commentRepo = store.Comments()
		outboxRepo = store.Outbox()
		slog.Warn("running with in-memory storage; state is lost on exit")
	} else {
		db, err := connect(c)
		if err != nil {
			return err
		}
		defer db.Close()

		pool = db.Pool()
		pinger = db
		txRunner = repository.NewTxRunner(pool)
		taskRepo = repository.NewTaskRepository(pool)
		historyRepo = repository.NewHistoryRepository(pool)
		commentRepo = repository.NewCommentRepository(pool)
		outboxRepo = repository.NewOutboxRepository(pool)
	}

	publisher, err := newPublisher(c, pool)
	if err != nil {
		return err
	}
	relay := notify.NewRelay(txRunner, outboxRepo, publisher, relayConfig(c))
	svcCfg.OnEnqueue = relay.Kick

	taskService := service.NewTaskService(txRunner, taskRepo, historyRepo, commentRepo, outboxRepo, svcCfg)
	h := handler.New(taskService, pinger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- relay.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-relayDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-relayDone; err != nil {
		return fmt.Errorf("relay stopped with error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runRelay(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, err := newPublisher(c, db.Pool())
	if err != nil {
		return err
	}

	relay := notify.NewRelay(
		repository.NewTxRunner(db.Pool()),
		repository.NewOutboxRepository(db.Pool()),
		publisher,
		relayConfig(c),
	)
	return relay.Run(ctx)
}

func runMigrate(c *cli.Context) error {
	db, err := connect(c)
	if err != nil {
		return err
	}
	db.Close()
	return nil
}
