package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"lettrly/internal/config"
	"lettrly/internal/db"
	"lettrly/internal/inbox"
	"lettrly/internal/letter"
	"lettrly/internal/logger"
	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/router"
	"lettrly/internal/user"
)

func main() {
	configDir := flag.String("config-dir", "./config", "directory holding config.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Must(*configDir)
	logger.Init(cfg.Log)

	// 1. Letter store
	database, err := db.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	if err := database.AutoMigrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	v := validator.New()
	if err := user.RegisterValidations(v); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	// 2. Users
	userService := user.NewService(user.NewRepository(database.Conn), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// 3. Live inbox. In feed mode letter writes wake the stream loops over Redis.
	letterRepo := letter.NewRepository(database.Conn)
	streamOpts := inbox.Options{PollInterval: cfg.Stream.PollInterval, ResyncEvery: cfg.Stream.ResyncEvery}

	var changes letter.ChangePublisher
	if cfg.Stream.Mode == config.StreamModeFeed {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Info().Str("addr", cfg.Redis.Address).Msg("connected to redis")

		hub := inbox.NewHub(redisClient)
		go hub.Run(ctx)
		go hub.SubscribeToRedis(ctx)

		changes = hub
		streamOpts.Feed = hub
	}

	letterService := letter.NewService(letterRepo, userService, changes, cfg.Letters.MaxLength)
	streamer := inbox.NewStreamer(letterRepo, streamOpts)

	handler := router.New(router.Handlers{
		User:   user.NewHandler(userService, v),
		Letter: letter.NewHandler(letterService, v),
		Inbox:  inbox.NewHandler(streamer, nil),
		Auth:   myMiddleware.NewAuthMiddleware(userService),
		Health: database.Conn.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams are long-lived, so no WriteTimeout. Requests inherit ctx so
		// a shutdown signal ends the open streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("stream_mode", cfg.Stream.Mode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown timed out, closing connections")
		_ = srv.Close()
	}
}
