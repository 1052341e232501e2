package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/tbourn/go-group-chat/docs"
	"github.com/tbourn/go-group-chat/internal/config"
	httpapi "github.com/tbourn/go-group-chat/internal/http"
	"github.com/tbourn/go-group-chat/internal/http/handlers"
	"github.com/tbourn/go-group-chat/internal/observability"
	"github.com/tbourn/go-group-chat/internal/presence"
	"github.com/tbourn/go-group-chat/internal/realtime"
	"github.com/tbourn/go-group-chat/internal/repo"
	"github.com/tbourn/go-group-chat/internal/services"
	"github.com/tbourn/go-group-chat/internal/session"
	"github.com/tbourn/go-group-chat/internal/storage"
	"github.com/tbourn/go-group-chat/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, "dev"))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	signer := storage.NewSigner(cfg.Storage.BaseURL, cfg.Storage.SigningKey,
		cfg.Storage.ThumbnailStyle, cfg.Storage.OriginalStyle, cfg.Storage.URLTTL)
	requests := services.NewChatRequestService(db, signer, cfg.ChatroomCapacity)
	chatrooms := services.NewChatroomService(db, signer, requests)
	friends := &services.FriendService{DB: db, Now: time.Now}
	users := &services.UserService{DB: db, Now: time.Now}

	registry := presence.NewRegistry()
	hub := realtime.NewHub(registry, log.Logger)
	hub.TrackEvents(session.Events()...)
	controller := session.New(registry, hub, requests, chatrooms, friends, users,
		log.With().Str("component", "session").Logger())

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	h := handlers.New(requests, chatrooms, controller, handlers.Options{
		DB:             db,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Conn: realtime.ConnConfig{
			SendBuffer:      cfg.WS.SendBuffer,
			MaxMessageBytes: cfg.WS.MaxMessageBytes,
			PingPeriod:      cfg.WS.PingPeriod,
			PongWait:        cfg.WS.PongWait,
			WriteWait:       cfg.WS.WriteWait,
			EventRPS:        cfg.WS.EventRPS,
			EventBurst:      cfg.WS.EventBurst,
		},
	})
	httpapi.RegisterRoutes(engine, h, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are invisible to srv.Shutdown.
	if err := hub.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Int("open", hub.Len()).Msg("websocket drain incomplete")
	}
	return srv.Shutdown(sctx)
}
