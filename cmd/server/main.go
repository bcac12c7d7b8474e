package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/paystream/ledger-service/internal/config"
	"github.com/paystream/ledger-service/internal/gateway"
	"github.com/paystream/ledger-service/internal/logger"
	"github.com/paystream/ledger-service/internal/model"
	"github.com/paystream/ledger-service/internal/repo"
	"github.com/paystream/ledger-service/internal/service"
	httptransport "github.com/paystream/ledger-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// TranslateError turns unique-constraint violations into
	// gorm.ErrDuplicatedKey, which the repo maps to conflict responses.
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.Individual{}, &model.Merchant{}, &model.Transfer{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	repository := repo.NewRepository(gdb, rdb, kw, log)
	authorizer := gateway.NewAuthorizer(cfg.Authorizer.URL, cfg.Authorizer.Timeout(), log)
	notifier := gateway.NewNotifier(cfg.Notifier.URL, cfg.Notifier.Timeout(), log)
	accounts := service.NewAccountService(repository, log)
	transfers := service.NewTransferService(repository, authorizer, notifier, log)

	router := httptransport.NewRouter(accounts, transfers, cfg.RateLimit, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("ledger-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
