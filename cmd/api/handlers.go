package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/application"
	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/errs"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/pubsub"

	"github.com/rs/zerolog"
)

// apiRequestBody is the shared JSON body shape of the embedded app's POST
// endpoints. Unused fields are simply absent.
type apiRequestBody struct {
	Shop         string `json:"shop"`
	SessionToken string `json:"sessionToken"`
	ChargeID     string `json:"chargeId"`
	Plan         string `json:"plan"`
	BlockID      string `json:"blockId"`
	Type         string `json:"type"`
}

// requestAuth extracts the session-relevant parts of a request. The body is
// optional; GET endpoints pass nil.
func requestAuth(r *http.Request, body *apiRequestBody) application.RequestAuth {
	auth := application.RequestAuth{
		IDToken:    r.Header.Get("X-Shopify-ID-Token"),
		HeaderShop: r.Header.Get("X-Shopify-Shop-Domain"),
		QueryShop:  r.URL.Query().Get("shop"),
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		auth.BearerToken = strings.TrimPrefix(h, "Bearer ")
	}
	if body != nil {
		auth.BodyToken = body.SessionToken
		auth.BodyShop = body.Shop
	}
	return auth
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// resolveOrRespond resolves the session and writes the response itself for
// every outcome except OutcomeAuthenticated. Returns handled=true when the
// caller should stop.
func resolveOrRespond(w http.ResponseWriter, r *http.Request, resolver *application.SessionResolver, auth application.RequestAuth, logger zerolog.Logger) (domain.ResolvedSession, bool) {
	rs, err := resolver.Resolve(r.Context(), auth)
	if err != nil {
		if errors.Is(err, errs.ErrSessionInvalid) {
			respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "invalid session token",
			})
			return rs, true
		}
		logger.Error().Err(err).Msg("Session resolution failed")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "internal server error",
		})
		return rs, true
	}

	switch rs.Outcome {
	case domain.OutcomeAuthenticated:
		return rs, false
	case domain.OutcomeMissingShop:
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "shop could not be determined",
		})
	case domain.OutcomeNeedsOAuth:
		respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success":              false,
			"requiresInstallation": true,
			"authUrl":              rs.AuthURL,
			"embedded":             rs.Embedded,
		})
	case domain.OutcomeNeedsFreshToken:
		respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"retry":   true,
			"error":   "session token expired",
		})
	}
	return rs, true
}

func billingErrorStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrChargeVerificationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, errs.ErrUnknownBlock):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrOAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// sessionCheckHandler reports the install/billing state of the calling shop.
// An uninstalled shop gets requiresInstallation with a ready-to-use OAuth
// URL rather than an error status, so the embedded frontend can redirect.
func sessionCheckHandler(resolver *application.SessionResolver, entitlements *application.EntitlementService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := resolver.Resolve(r.Context(), requestAuth(r, nil))
		if err != nil {
			if errors.Is(err, errs.ErrSessionInvalid) {
				respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"error":   "invalid session token",
				})
				return
			}
			logger.Error().Err(err).Msg("Session resolution failed")
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "internal server error",
			})
			return
		}

		switch rs.Outcome {
		case domain.OutcomeMissingShop:
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "shop parameter is required",
			})
		case domain.OutcomeNeedsOAuth:
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":              false,
				"requiresInstallation": true,
				"authUrl":              rs.AuthURL,
				"embedded":             rs.Embedded,
			})
		case domain.OutcomeNeedsFreshToken:
			respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"retry":   true,
				"error":   "session token expired",
			})
		case domain.OutcomeAuthenticated:
			ent, err := entitlements.Compute(r.Context(), rs.Shop)
			if err != nil {
				logger.Error().Err(err).Str("shop", rs.Shop).Msg("Entitlement compute failed")
				respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"error":   "internal server error",
				})
				return
			}
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":              true,
				"requiresInstallation": false,
				"hasSubscription":      ent.HasActiveSubscription,
				"subscription":         ent.Subscription,
				"embedded":             rs.Embedded,
			})
		}
	}
}

// entitlementHandler returns the full catalog annotated with the calling
// shop's access.
func entitlementHandler(resolver *application.SessionResolver, entitlements *application.EntitlementService, catalog *domain.Catalog, logger zerolog.Logger) http.HandlerFunc {
	type blockView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Price    int    `json:"price"`
		Category string `json:"category"`
		Active   bool   `json:"active"`
		Entitled bool   `json:"entitled"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		rs, handled := resolveOrRespond(w, r, resolver, requestAuth(r, nil), logger)
		if handled {
			return
		}

		ent, err := entitlements.Compute(r.Context(), rs.Shop)
		if err != nil {
			logger.Error().Err(err).Str("shop", rs.Shop).Msg("Entitlement compute failed")
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "internal server error",
			})
			return
		}

		blocks := make([]blockView, 0, len(catalog.Blocks()))
		for _, b := range catalog.Blocks() {
			blocks = append(blocks, blockView{
				ID:       b.ID,
				Name:     b.Name,
				Price:    b.Price,
				Category: b.Category,
				Active:   b.Active,
				Entitled: ent.Allows(b.ID),
			})
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"blocks": blocks,
			"access": map[string]interface{}{
				"hasActiveSubscription": ent.HasActiveSubscription,
				"availableBlocks":       ent.BlockIDs,
				"accessType":            ent.AccessType,
			},
		})
	}
}

// syncHandler forces a metafield sync for the calling shop.
func syncHandler(resolver *application.SessionResolver, entitlements *application.EntitlementService, synchronizer *application.MetafieldSynchronizer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body apiRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "invalid request body",
			})
			return
		}

		rs, handled := resolveOrRespond(w, r, resolver, requestAuth(r, &body), logger)
		if handled {
			return
		}

		ent, err := entitlements.Compute(r.Context(), rs.Shop)
		if err != nil {
			logger.Error().Err(err).Str("shop", rs.Shop).Msg("Entitlement compute failed")
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "internal server error",
			})
			return
		}

		result, err := synchronizer.Sync(r.Context(), rs.Shop, rs.AccessToken, ent, true)
		if err != nil {
			logger.Error().Err(err).Str("shop", rs.Shop).Msg("Metafield sync failed")
			respondJSON(w, http.StatusBadGateway, map[string]interface{}{
				"success": false,
				"error":   "failed to sync blocks",
			})
			return
		}

		message := result.Message
		if message == "" {
			message = fmt.Sprintf("synced %d blocks", result.Written)
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"message":         message,
			"blocksInstalled": result.Written,
		})
	}
}

// confirmSubscriptionHandler completes a subscription purchase after the
// merchant approves the charge.
func confirmSubscriptionHandler(resolver *application.SessionResolver, reconciler *application.BillingReconciler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body apiRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "invalid request body",
			})
			return
		}

		rs, handled := resolveOrRespond(w, r, resolver, requestAuth(r, &body), logger)
		if handled {
			return
		}

		chargeID := body.ChargeID
		if chargeID == "" {
			chargeID = r.URL.Query().Get("charge_id")
		}
		if chargeID == "" {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "chargeId is required",
			})
			return
		}

		sub, err := reconciler.ConfirmSubscription(r.Context(), rs.Shop, chargeID, body.Plan)
		if err != nil {
			logger.Error().Err(err).Str("shop", rs.Shop).Str("chargeId", chargeID).Msg("Subscription confirmation failed")
			respondJSON(w, billingErrorStatus(err), map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"subscription": sub,
		})
	}
}

// confirmPurchaseHandler completes a one-time block purchase after the
// merchant approves the charge.
func confirmPurchaseHandler(resolver *application.SessionResolver, reconciler *application.BillingReconciler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body apiRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "invalid request body",
			})
			return
		}

		rs, handled := resolveOrRespond(w, r, resolver, requestAuth(r, &body), logger)
		if handled {
			return
		}

		chargeID := body.ChargeID
		if chargeID == "" {
			chargeID = r.URL.Query().Get("charge_id")
		}
		if body.BlockID == "" || chargeID == "" {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "blockId and chargeId are required",
			})
			return
		}

		purchase, err := reconciler.ConfirmPurchase(r.Context(), rs.Shop, body.BlockID, chargeID, body.Type)
		if err != nil {
			logger.Error().Err(err).Str("shop", rs.Shop).Str("chargeId", chargeID).Msg("Purchase confirmation failed")
			respondJSON(w, billingErrorStatus(err), map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"purchase": purchase,
		})
	}
}

// cancelSubscriptionHandler flips the calling shop's subscription to
// cancelled and downgrades its metafields.
func cancelSubscriptionHandler(resolver *application.SessionResolver, reconciler *application.BillingReconciler, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body apiRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "invalid request body",
			})
			return
		}

		rs, handled := resolveOrRespond(w, r, resolver, requestAuth(r, &body), logger)
		if handled {
			return
		}

		sub, err := reconciler.CancelSubscription(r.Context(), rs.Shop)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				respondJSON(w, http.StatusNotFound, map[string]interface{}{
					"success": false,
					"error":   "no active subscription",
				})
				return
			}
			logger.Error().Err(err).Str("shop", rs.Shop).Msg("Subscription cancellation failed")
			respondJSON(w, billingErrorStatus(err), map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"subscription": sub,
		})
	}
}

// eventsHandler streams entitlement changes over SSE. An optional shop
// query parameter scopes the feed to one shop.
func eventsHandler(ps *pubsub.EntitlementPubSub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		shop := r.URL.Query().Get("shop")
		if shop != "" {
			shop = domain.NormalizeShopDomain(shop)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := ps.Subscribe(r.Context(), shop)
		defer ps.Unsubscribe(ch.ID)

		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-ch.Events:
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to marshal entitlement event")
					continue
				}
				fmt.Fprintf(w, "event: entitlement\ndata: %s\n\n", data)
				flusher.Flush()
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			}
		}
	}
}
