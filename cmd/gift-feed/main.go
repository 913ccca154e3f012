package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theplug/backend/internal/config"
	"github.com/theplug/backend/internal/db"
	"github.com/theplug/backend/internal/events"
	"github.com/theplug/backend/internal/services"
	"go.uber.org/zap"
)

// Gift Feed: subscribes to committed gifts on Redis and forwards each one to
// GIFT_WEBHOOK_URL.

const forwardTimeout = 10 * time.Second

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required")
	}
	if cfg.GiftWebhookURL == "" {
		log.Fatal("GIFT_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	webhook := services.NewWebhookClient(cfg.GiftWebhookURL, log)

	err = subscriber.Subscribe(ctx, events.StreamGifts, func(event events.Event) {
		if event.Type != events.EventGiftSent {
			return
		}
		fctx, fcancel := context.WithTimeout(ctx, forwardTimeout)
		defer fcancel()
		if err := webhook.Forward(fctx, event); err != nil {
			log.Warn("failed to forward gift", zap.Any("gift_id", event.Payload["id"]), zap.Error(err))
			return
		}
		log.Info("gift forwarded", zap.Any("gift_id", event.Payload["id"]))
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("gift-feed started", zap.String("stream", events.StreamGifts))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down gift-feed")
	cancel()
}
