package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"codecollab/internal/api"
	"codecollab/internal/collab"
	"codecollab/internal/config"
	"codecollab/internal/relay"
	"codecollab/internal/routers"
	"codecollab/internal/session"
	"codecollab/internal/store"
	"codecollab/internal/utils"
)

var (
	listenAndServe = func(ctx context.Context, addr string, handler http.Handler) error {
		server := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
	exitFunc = func(err error) {
		utils.NewLogger().Error("collab-svc exited", "error", err.Error())
		os.Exit(1)
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := session.NewHub()
	broadcaster := session.NewBroadcaster(hub, logger)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		rl := relay.NewRedis(rdb, cfg.RedisChannel, logger)
		broadcaster.SetRelay(rl)
		go func() {
			if err := rl.Run(ctx, broadcaster.Deliver); err != nil {
				logger.Error("relay stopped", "error", err.Error())
			}
		}()
		logger.Info("cross-instance relay enabled", "redis", cfg.RedisAddr, "instance", rl.InstanceID())
	}

	ctrl := collab.NewController(st, session.NewRegistry(), broadcaster, logger)
	handlers := api.NewHandlers(logger, st, ctrl, api.Options{
		QueueSize:    cfg.ClientQueueSize,
		HistoryLimit: cfg.ChatHistoryLimit,
	})

	addr := ":" + cfg.Port
	logger.Info("collab-svc listening", "addr", addr, "db", cfg.DBDriver)
	err = listenAndServe(ctx, addr, routers.New(handlers, cfg.CORSOrigins))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
