package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adedayo14/shopifycart-sub000/internal/application"
	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"github.com/rs/zerolog"
)

// SubscriptionHandler handles app subscription billing webhook events.
type SubscriptionHandler struct {
	logger     zerolog.Logger
	reconciler *application.BillingReconciler
}

// NewSubscriptionHandler creates a new subscription webhook handler.
func NewSubscriptionHandler(logger zerolog.Logger, reconciler *application.BillingReconciler) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger, reconciler: reconciler}
}

// CanHandle returns true if this handler can process the given topic.
func (h *SubscriptionHandler) CanHandle(topic string) bool {
	return topic == "app_subscriptions/update"
}

// Handle processes an app subscription webhook event.
func (h *SubscriptionHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		AppSubscription struct {
			AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
			Name              string `json:"name"`
			Status            string `json:"status"`
		} `json:"app_subscription"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse app subscription webhook payload: %w", err)
	}

	sub := payload.AppSubscription
	chargeID := gidNumericID(sub.AdminGraphqlAPIID)
	status := strings.ToLower(sub.Status)

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("chargeId", chargeID).
		Str("plan", sub.Name).
		Str("status", status).
		Msg("Processing app subscription webhook event")

	return h.reconciler.ApplySubscriptionStatus(ctx, event.Shop, chargeID, sub.Name, status)
}

// gidNumericID extracts the trailing numeric ID from a GraphQL gid, e.g.
// "gid://shopify/AppSubscription/123" -> "123".
func gidNumericID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 {
		return gid[i+1:]
	}
	return gid
}
