package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabnotes-server/internal/config"
	"collabnotes-server/internal/handler"
	"collabnotes-server/internal/lock"
	"collabnotes-server/internal/logging"
	"collabnotes-server/internal/repository"
	"collabnotes-server/internal/repository/memory"
	"collabnotes-server/internal/service"
	"collabnotes-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeRepos()

	clk := clockwork.NewRealClock()

	locks := lock.NewStore(repos.Locks,
		lock.WithTTL(cfg.Lock.TTL),
		lock.WithClock(clk),
		lock.WithLogger(logger.Named("lock")),
	)
	if err := locks.Load(ctx); err != nil {
		logger.Error("failed to load persisted locks", "error", err)
		os.Exit(1)
	}
	go locks.RunSweeper(ctx, cfg.Lock.SweepInterval)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		logger.Named("ws"),
	)
	go wsManager.Run(ctx)

	versionService := service.NewVersionService(repos.Notes, repos.Versions, clk, logger.Named("version"))
	noteService := service.NewNoteService(repos.Notes, versionService, locks, wsManager, clk, logger.Named("note"))
	editService := service.NewEditService(repos.Notes, locks, versionService, wsManager, clk, logger.Named("edit"))
	authService := service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, clk)
	userService := service.NewUserService(repos.Users)

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, editService))

	httpLogger := logger.Named("http")
	router := handler.NewRouter(handler.Handlers{
		Auth:     handler.NewAuthHandler(authService, httpLogger),
		Users:    handler.NewUserHandler(userService, httpLogger),
		Notes:    handler.NewNoteHandler(noteService, httpLogger),
		Edits:    handler.NewEditHandler(editService, httpLogger),
		Versions: handler.NewVersionHandler(versionService, httpLogger),
		WebSocket: handler.NewWebSocketHandler(
			wsManager,
			cfg.JWT.Secret,
			cfg.WebSocket.ReadBufferSize,
			cfg.WebSocket.WriteBufferSize,
			logger.Named("ws"),
		),
	}, handler.RouterConfig{
		JWTSecret:      cfg.JWT.Secret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	}, httpLogger)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}

	go func() {
		logger.Info("starting collabnotes server", "addr", addr, "env", cfg.Server.Env, "driver", cfg.Database.Driver, "lock_ttl", cfg.Lock.TTL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped gracefully")
}

// openRepositories builds the repositories for the configured driver and
// returns a function releasing their connections.
func openRepositories(ctx context.Context, cfg *config.Config, logger hclog.Logger) (repository.Repositories, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), func() {}, nil

	case config.DriverPostgres:
		db, err := repository.OpenPostgres(ctx, repository.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Name:     cfg.Postgres.Name,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return repository.Repositories{}, nil, err
		}
		logger.Info("connected to postgres", "host", cfg.Postgres.Host, "db", cfg.Postgres.Name)
		return repository.NewPostgresRepositories(db), func() { db.Close() }, nil

	default:
		couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
		)

		client, err := kivik.New("couch", couchURL)
		if err != nil {
			return repository.Repositories{}, nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}

		exists, err := client.DBExists(ctx, cfg.Database.Name)
		if err != nil {
			client.Close()
			return repository.Repositories{}, nil, fmt.Errorf("failed to check database existence: %w", err)
		}

		if !exists {
			if err := client.CreateDB(ctx, cfg.Database.Name); err != nil {
				client.Close()
				return repository.Repositories{}, nil, fmt.Errorf("failed to create database: %w", err)
			}
			logger.Info("created database", "db", cfg.Database.Name)
		}

		if err := repository.EnsureVersionIndex(ctx, client, cfg.Database.Name); err != nil {
			client.Close()
			return repository.Repositories{}, nil, err
		}

		logger.Info("connected to couchdb", "host", cfg.Database.Host, "db", cfg.Database.Name)
		return repository.NewCouchRepositories(client, cfg.Database.Name), func() { client.Close() }, nil
	}
}
