/*
Package main is the entry point for the pairchat server.

It loads configuration, initializes logging, builds the configured stores and broadcast bus,
starts the HTTP server with the WebSocket hub, and shuts everything down on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"pairchat/internal/app/bus"
	"pairchat/internal/app/chat"
	"pairchat/internal/app/db"
	"pairchat/internal/app/message"
	"pairchat/internal/app/presence"
	"pairchat/internal/app/user"
	"pairchat/internal/configs"
	"pairchat/internal/handler"
	"pairchat/internal/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users    *user.MemoryStore
	pgUsers  *user.PostgresStore
	presence presence.Store
	messages message.Store
	pool     *pgxpool.Pool
}

func (s *stores) userStore() user.Store {
	if s.pgUsers != nil {
		return s.pgUsers
	}
	return s.users
}

func (s *stores) friendStore() user.FriendStore {
	if s.pgUsers != nil {
		return s.pgUsers
	}
	return s.users
}

func openStores(ctx context.Context, cfg *configs.AppConfig) (*stores, error) {
	if cfg.StoreBackend != configs.BackendPostgres {
		return &stores{
			users:    user.NewMemoryStore(),
			presence: presence.NewMemoryStore(),
			messages: message.NewMemoryStore(),
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	return &stores{
		pgUsers:  user.NewPostgresStore(pool),
		presence: presence.NewPostgresStore(pool),
		messages: message.NewPostgresStore(pool),
		pool:     pool,
	}, nil
}

func openBus(ctx context.Context, cfg *configs.AppConfig) (bus.Bus, *nats.Conn, error) {
	if cfg.BusBackend != configs.BackendNATS {
		return bus.NewMemoryBus(), nil, nil
	}

	nc, err := bus.ConnectNATS(ctx, cfg.NATSURL, "pairchat")
	if err != nil {
		return nil, nil, err
	}

	return bus.NewNATSBus(nc, bus.DefaultSubjectPrefix), nc, nil
}

// readiness reports an error while a configured backend is unreachable.
func readiness(pool *pgxpool.Pool, nc *nats.Conn) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if pool != nil {
			if err := db.Ping(ctx, pool); err != nil {
				return err
			}
		}

		if nc != nil && !nc.IsConnected() {
			return fmt.Errorf("nats not connected: %s", nc.Status())
		}

		return nil
	}
}

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_backend", cfg.StoreBackend).
		Str("bus_backend", cfg.BusBackend).
		Dur("presence_ttl", cfg.PresenceTTL).
		Bool("require_friendship", cfg.RequireFriendship).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open stores")
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	broadcast, nc, err := openBus(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open broadcast bus")
	}
	if nc != nil {
		defer func() {
			if err := nc.Drain(); err != nil {
				logx.Error(err, "NATS drain failed")
			}
		}()
	}

	presenceSvc := presence.NewService(st.presence, cfg.PresenceTTL)

	hub := chat.NewHub(cfg, chat.Deps{
		Bus:      broadcast,
		Presence: presenceSvc,
		Messages: st.messages,
		Users:    st.userStore(),
		Friends:  st.friendStore(),
	})

	router := handler.Router(ctx, &handler.AppDeps{
		Config:   cfg,
		Hub:      hub,
		Users:    st.userStore(),
		Friends:  st.friendStore(),
		Messages: st.messages,
		Presence: presenceSvc,
		Ready:    readiness(st.pool, nc),
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("pairchat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server forced to shutdown")
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Hub did not finish closing sessions")
	}

	if err := broadcast.Close(); err != nil {
		logx.Error(err, "Broadcast bus close failed")
	}

	logx.Info("Server gracefully stopped.")
}
