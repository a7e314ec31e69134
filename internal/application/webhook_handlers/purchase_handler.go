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

// PurchaseHandler handles one-time application charge webhook events.
type PurchaseHandler struct {
	logger     zerolog.Logger
	reconciler *application.BillingReconciler
}

// NewPurchaseHandler creates a new one-time purchase webhook handler.
func NewPurchaseHandler(logger zerolog.Logger, reconciler *application.BillingReconciler) *PurchaseHandler {
	return &PurchaseHandler{logger: logger, reconciler: reconciler}
}

// CanHandle returns true if this handler can process the given topic.
func (h *PurchaseHandler) CanHandle(topic string) bool {
	return topic == "app_purchases_one_time/update"
}

// Handle processes a one-time purchase webhook event. The charge name
// carries the block ID it grants.
func (h *PurchaseHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		AppPurchaseOneTime struct {
			AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
			Name              string `json:"name"`
			Status            string `json:"status"`
		} `json:"app_purchase_one_time"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse one-time purchase webhook payload: %w", err)
	}

	purchase := payload.AppPurchaseOneTime
	chargeID := gidNumericID(purchase.AdminGraphqlAPIID)
	status := strings.ToLower(purchase.Status)

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("chargeId", chargeID).
		Str("blockId", purchase.Name).
		Str("status", status).
		Msg("Processing one-time purchase webhook event")

	return h.reconciler.ApplyPurchaseStatus(ctx, event.Shop, chargeID, purchase.Name, status)
}
