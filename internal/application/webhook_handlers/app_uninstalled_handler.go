package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adedayo14/shopifycart-sub000/internal/application"
	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events by redacting
// the shop's billing and session data.
type AppUninstalledHandler struct {
	logger     zerolog.Logger
	reconciler *application.BillingReconciler
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler.
func NewAppUninstalledHandler(logger zerolog.Logger, reconciler *application.BillingReconciler) *AppUninstalledHandler {
	return &AppUninstalledHandler{logger: logger, reconciler: reconciler}
}

// CanHandle returns true if this handler can process the given topic.
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled" || topic == "shop/redact"
}

// Handle processes an app uninstalled webhook event.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData map[string]interface{}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		if d, ok := shopData["domain"].(string); ok {
			shopDomain = d
		} else if d, ok := shopData["myshopify_domain"].(string); ok {
			shopDomain = d
		} else if d, ok := shopData["shop_domain"].(string); ok {
			shopDomain = d
		}
	}
	if shopDomain == "" {
		return fmt.Errorf("app uninstalled webhook carries no shop domain")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	return h.reconciler.RedactShop(ctx, shopDomain)
}
