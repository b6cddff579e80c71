package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tdnguyen-dev/echochat/config"
	"github.com/tdnguyen-dev/echochat/internal/auth"
	"github.com/tdnguyen-dev/echochat/internal/database"
	"github.com/tdnguyen-dev/echochat/internal/events"
	"github.com/tdnguyen-dev/echochat/internal/handlers"
	"github.com/tdnguyen-dev/echochat/internal/oracle"
	"github.com/tdnguyen-dev/echochat/internal/presence"
	"github.com/tdnguyen-dev/echochat/internal/push"
	"github.com/tdnguyen-dev/echochat/internal/repository"
	"github.com/tdnguyen-dev/echochat/internal/routes"
	"github.com/tdnguyen-dev/echochat/internal/service"
	"github.com/tdnguyen-dev/echochat/internal/ws"
	"github.com/tdnguyen-dev/echochat/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	mc, err := database.NewMongoClient(cfg)
	if err != nil {
		lg.Fatalw("mongo init", "error", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		cancel()
		lg.Fatalw("ensure indexes", "error", err)
	}
	cancel()

	rdb, err := database.NewRedisClient(cfg)
	if err != nil {
		lg.Fatalw("redis init", "error", err)
	}
	defer rdb.Close()

	jv, err := auth.NewJWTValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Alg, cfg.JWT.Secret)
	if err != nil {
		lg.Fatalw("jwt init", "error", err)
	}

	convRepo := repository.NewConversationRepo(db.Collection(database.ColConversations))
	memberRepo := repository.NewMemberRepo(db.Collection(database.ColMembers))
	msgRepo := repository.NewMessageRepo(db.Collection(database.ColMessages))
	notifRepo := repository.NewNotificationRepo(db.Collection(database.ColNotifications))
	tokenRepo := repository.NewPushTokenRepo(db.Collection(database.ColPushTokens))
	userRepo := repository.NewUserRepo(db.Collection(database.ColUsers))
	txn := repository.NewTxnRunner(mc, lg)

	blockOracle := oracle.NewBlockOracle(db.Collection(database.ColBlocks))
	pres := presence.NewStore(rdb, cfg.Redis.Prefix)
	pushSender := push.NewFCMSender(cfg.Push.Endpoint, cfg.Push.ServerKey)

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		p := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer p.Close()
		publisher = p
	}

	hub := ws.NewHub(lg)
	bc := ws.NewHubBroadcaster(hub)

	notifSvc := service.NewNotificationService(notifRepo, tokenRepo, pres, pushSender, bc, lg)
	convSvc := service.NewConversationService(convRepo, memberRepo, userRepo, blockOracle, txn, lg)
	msgSvc := service.NewMessageService(convRepo, memberRepo, msgRepo, userRepo, blockOracle, txn, bc, notifSvc, publisher, lg)

	gateway := ws.NewGateway(hub, jv, pres, msgSvc, lg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	})
	routes.Register(app, routes.Deps{
		JWT:           jv,
		Conversations: handlers.NewConversationHandler(convSvc, lg),
		Messages:      handlers.NewMessageHandler(msgSvc, lg),
		Notifications: handlers.NewNotificationHandler(notifSvc, lg),
		Gateway:       gateway,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		if err := app.Listen(addr); err != nil {
			lg.Fatalw("server listen", "error", err)
		}
	}()
	lg.Infow("started", "port", cfg.App.Port, "env", cfg.App.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Errorw("shutdown", "error", err)
	}
}
