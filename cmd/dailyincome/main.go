package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/iurnickita/dailyincome/internal/auth"
	"github.com/iurnickita/dailyincome/internal/config"
	"github.com/iurnickita/dailyincome/internal/handler"
	"github.com/iurnickita/dailyincome/internal/logger"
	"github.com/iurnickita/dailyincome/internal/referral"
	"github.com/iurnickita/dailyincome/internal/scheduler"
	"github.com/iurnickita/dailyincome/internal/settlement"
	"github.com/iurnickita/dailyincome/internal/settlement/notifier"
	"github.com/iurnickita/dailyincome/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// .env для локального запуска, в проде переменные окружения
	godotenv.Load()

	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	publisher := notifier.NewNopPublisher()
	if cfg.Settlement.AMQPURI != "" {
		publisher, err = notifier.NewAMQPPublisher(cfg.Settlement.AMQPURI)
		if err != nil {
			return err
		}
	}
	defer publisher.Close()

	resolver := referral.NewResolver(store)
	settlement := settlement.NewSettlement(cfg.Settlement, store, publisher, zaplog)
	auth := auth.NewAuth(cfg.Auth, store, resolver)

	sched := scheduler.NewScheduler(cfg.Scheduler, settlement, zaplog)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	return handler.Serve(cfg.Handler, auth, settlement, store, zaplog)
}
