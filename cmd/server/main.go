package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/makedist/asset_registry/internal/config"
	"github.com/makedist/asset_registry/internal/es"
	"github.com/makedist/asset_registry/internal/events"
	"github.com/makedist/asset_registry/internal/handlers"
	"github.com/makedist/asset_registry/internal/logging"
	authmw "github.com/makedist/asset_registry/internal/middleware/auth"
	loggingmw "github.com/makedist/asset_registry/internal/middleware/logging"
	"github.com/makedist/asset_registry/internal/service/allocator"
	"github.com/makedist/asset_registry/internal/service/token"
	httpserver "github.com/makedist/asset_registry/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	if err := config.EnsureAdmin(db, configuration); err != nil {
		log.Fatalf("admin bootstrap error: %v", err)
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	} else {
		logger.Warn("ES_URL not set, asset search disabled")
	}

	tokens := &token.Service{Secret: []byte(configuration.JWT_SECRET), TTL: token.DefaultTTL}
	gate := &authmw.Gate{Tokens: tokens}
	alloc := &allocator.Allocator{Org: configuration.ORG_CODE}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Gate:            gate,
		AuthHandler:     &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: producer},
		CategoryHandler: &handlers.CategoryHandler{DB: db, Producer: producer},
		AssetHandler:    &handlers.AssetHandler{DB: db, Producer: producer, ES: esClient, Index: "assets", Allocator: alloc},
		HistoryHandler:  &handlers.HistoryHandler{DB: db, Producer: producer},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
