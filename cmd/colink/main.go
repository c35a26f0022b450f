package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/colink/colink/config"
	"github.com/colink/colink/internal/handlers"
	"github.com/colink/colink/internal/redis"
	"github.com/colink/colink/internal/signaling"
	"github.com/colink/colink/internal/users"
)

func main() {
	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		w := zerolog.ConsoleWriter{Out: os.Stdout}
		zlog.Logger = zerolog.New(w).With().Timestamp().Logger()
	}

	if err := redis.Connect(cfg.Redis); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redis.Close()
	zlog.Info().Msg("Redis connection established")

	store := users.NewRedisStore(redis.GetClient())
	hub := signaling.NewHub(cfg.RoomCapacity)

	router := handlers.NewRouter(cfg, hub, store)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Int("room_capacity", cfg.RoomCapacity).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}
	zlog.Info().Msg("Server exited")
}
