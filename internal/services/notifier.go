package services

import (
	"context"
	"time"

	"github.com/theplug/backend/internal/events"
	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/relay"
	"go.uber.org/zap"
)

const feedPublishTimeout = 2 * time.Second

// Broadcaster is the part of the relay the notifier needs.
type Broadcaster interface {
	Broadcast(event string, payload any) int
}

// GiftNotifier tells live viewers about committed gifts and feeds them to
// the Redis gift channel. Every failure is logged and swallowed.
type GiftNotifier struct {
	relay     Broadcaster
	publisher events.Publisher
	log       *zap.Logger
}

func NewGiftNotifier(b Broadcaster, publisher events.Publisher, log *zap.Logger) *GiftNotifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &GiftNotifier{relay: b, publisher: publisher, log: log}
}

func (n *GiftNotifier) Notify(gift *models.GiftTransaction) {
	notice := relay.GiftNotice{From: gift.FromUsername, To: gift.ToUsername, Value: gift.Value}
	sent := n.relay.Broadcast(relay.EventGift, notice)
	n.log.Debug("gift broadcast", zap.Int64("gift_id", gift.ID), zap.Int("recipients", sent))

	event := events.Event{
		Type: events.EventGiftSent,
		Payload: map[string]any{
			"id":         gift.ID,
			"from":       gift.FromUsername,
			"to":         gift.ToUsername,
			"value":      gift.Value,
			"created_at": gift.CreatedAt,
		},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), feedPublishTimeout)
		defer cancel()
		if err := n.publisher.Publish(ctx, events.StreamGifts, event); err != nil {
			n.log.Warn("failed to publish gift event", zap.Int64("gift_id", gift.ID), zap.Error(err))
		}
	}()
}
