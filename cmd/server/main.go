package main // Entry point for the SI Releves API server

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/yassineqb/si-releves/internal/config"
	"github.com/yassineqb/si-releves/internal/database"
	"github.com/yassineqb/si-releves/internal/handler"
	"github.com/yassineqb/si-releves/internal/queue"
	"github.com/yassineqb/si-releves/internal/repository"
	"github.com/yassineqb/si-releves/internal/router"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()
	log.Println("database connection established")

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: cache and rate limiting disabled")
	}

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	meterRepo := repository.NewMeterRepo(db, cfg.MeterPrefix)
	readingRepo := repository.NewReadingRepo(db)
	clientRepo := repository.NewClientRepo(db)

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, userRepo, tokenRepo),
		Users:    handler.NewUserHandler(cfg, userRepo, tokenRepo),
		Meters:   handler.NewMeterHandler(cfg, meterRepo, userRepo),
		Readings: handler.NewReadingHandler(readingRepo, userRepo),
		Clients:  handler.NewClientHandler(clientRepo, cfg.DefaultCity),
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, h, rdb)

	// Feed the ops log from recorded readings in the background.
	go func() {
		if err := queue.StartReadingConsumer(); err != nil {
			log.Printf("releve consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
