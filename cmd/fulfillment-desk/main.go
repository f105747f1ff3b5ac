package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/merchantops/fulfillment-desk/internal/allocation"
	"github.com/merchantops/fulfillment-desk/internal/assembler"
	"github.com/merchantops/fulfillment-desk/internal/config"
	"github.com/merchantops/fulfillment-desk/internal/db"
	"github.com/merchantops/fulfillment-desk/internal/duedate"
	"github.com/merchantops/fulfillment-desk/internal/handler"
	"github.com/merchantops/fulfillment-desk/internal/stockfeed"
	"github.com/merchantops/fulfillment-desk/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "fulfillment-desk").Logger()

	log.Info().Msg("Fulfillment desk starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	database, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	cal := duedate.NewCalendar(cfg.Desk.Holidays...)
	engine := allocation.NewEngine(cal, allocation.Config{
		ReserveThreshold: cfg.Desk.ReserveThreshold,
		PackedKeywords:   cfg.Desk.PackedKeywords,
	})

	desk := assembler.New(
		assembler.NewPostgresRepository(database.Pool),
		assembler.NewRedisSets(redisClient),
	)
	syncer := stockfeed.NewSyncer(database.SQL)

	router := transport.NewRouter(handler.NewDashboardHandler(desk, engine, syncer))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
