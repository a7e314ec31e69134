package application

import (
	"context"
	"fmt"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes webhook events for the topics it declares.
type WebhookHandler interface {
	// CanHandle returns true if this handler can process the given topic.
	CanHandle(topic string) bool

	// Handle processes a webhook event.
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to registered handlers.
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher.
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler to the dispatch chain.
func (d *WebhookDispatcher) RegisterHandler(handler WebhookHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch delivers the event to every handler claiming its topic. Events
// with no handler are logged and acknowledged so Shopify does not retry
// topics this app deliberately ignores.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			return fmt.Errorf("handler failed for topic %s: %w", event.Topic, err)
		}
	}

	if !handled {
		d.logger.Debug().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Msg("No handler registered for webhook topic")
	}
	return nil
}
