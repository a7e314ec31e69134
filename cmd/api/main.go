package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/application"
	"github.com/adedayo14/shopifycart-sub000/internal/application/webhook_handlers"
	"github.com/adedayo14/shopifycart-sub000/internal/domain"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/cache"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/encryption"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/metrics"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/pubsub"
	"github.com/adedayo14/shopifycart-sub000/internal/infrastructure/repository"
	shopifyinfra "github.com/adedayo14/shopifycart-sub000/internal/infrastructure/shopify"
	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// oauthScopes are requested during installation. Metafields are written to
// the app's own installation, which needs no extra scope.
var oauthScopes = []string{"read_themes"}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}

	apiKey := os.Getenv("SHOPIFY_API_KEY")
	apiSecret := os.Getenv("SHOPIFY_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		logger.Fatal().Msg("SHOPIFY_API_KEY and SHOPIFY_API_SECRET environment variables are required")
	}

	// Shopify signs webhooks with the app secret unless a dedicated secret
	// is configured.
	webhookSecret := os.Getenv("SHOPIFY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		webhookSecret = apiSecret
	}

	// Connect to MongoDB
	client, err := connectMongo(mongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(os.Getenv("MONGODB_DATABASE"))

	// Get encryption key
	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Initialize repositories
	sessionRepo := repository.NewMongoSessionRepository(db)
	subscriptionRepo := repository.NewMongoSubscriptionRepository(db)
	purchaseRepo := repository.NewMongoPurchaseRepository(db)

	// Sync-state cache: Redis when configured, in-memory otherwise
	var syncCache ports.SyncStateCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		redisClient := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory sync cache")
			syncCache = cache.NewMemorySyncCache()
		} else {
			syncCache = cache.NewRedisSyncCache(redisClient)
		}
	} else {
		syncCache = cache.NewMemorySyncCache()
	}

	// Load the block catalog
	catalog := domain.DefaultCatalog()
	if catalogPath := os.Getenv("BLOCK_CATALOG_PATH"); catalogPath != "" {
		catalog, err = domain.LoadCatalog(catalogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", catalogPath).Msg("Failed to load block catalog")
		}
	}

	syncCooldown := application.DefaultSyncCooldown
	if raw := os.Getenv("SYNC_COOLDOWN"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn().Err(err).Str("value", raw).Msg("Invalid SYNC_COOLDOWN, using default")
		} else {
			syncCooldown = d
		}
	}

	adminClient := shopifyinfra.NewAdminClient(apiKey, apiSecret, logger)
	webhookVerifier := shopifyinfra.NewWebhookVerifier(webhookSecret)

	// Initialize application services
	sessionResolver := application.NewSessionResolver(
		sessionRepo,
		encryptionService,
		[]byte(apiSecret),
		apiKey,
		appURL,
		logger,
	)

	entitlementService := application.NewEntitlementService(
		subscriptionRepo,
		purchaseRepo,
		catalog,
		logger,
	)

	synchronizer := application.NewMetafieldSynchronizer(
		adminClient,
		syncCache,
		catalog,
		syncCooldown,
		logger,
	)

	// Initialize entitlement pub/sub for the SSE event feed
	entitlementPubSub := pubsub.NewEntitlementPubSub(logger)

	reconciler := application.NewBillingReconciler(
		subscriptionRepo,
		purchaseRepo,
		sessionRepo,
		encryptionService,
		adminClient,
		catalog,
		entitlementService,
		synchronizer,
		entitlementPubSub,
		logger,
	)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewSubscriptionHandler(logger, reconciler))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewPurchaseHandler(logger, reconciler))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, reconciler))

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Health check - must be public for monitoring
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Embedded app API
	r.Get("/api/session/check", sessionCheckHandler(sessionResolver, entitlementService, logger))
	r.Get("/api/blocks/entitlement", entitlementHandler(sessionResolver, entitlementService, catalog, logger))
	r.Post("/api/blocks/sync", syncHandler(sessionResolver, entitlementService, synchronizer, logger))

	// Billing confirmations (merchant returns from the charge approval page)
	r.Post("/api/billing/subscribe/confirm", confirmSubscriptionHandler(sessionResolver, reconciler, logger))
	r.Post("/api/billing/purchase/confirm", confirmPurchaseHandler(sessionResolver, reconciler, logger))
	r.Post("/api/billing/subscription/cancel", cancelSubscriptionHandler(sessionResolver, reconciler, logger))

	// Entitlement event feed
	r.Get("/api/events", eventsHandler(entitlementPubSub, logger))

	// OAuth routes
	r.Get("/auth/shopify", oauthInitHandler(sessionRepo, adminClient, appURL, logger))
	r.Get("/auth/callback", oauthCallbackHandler(sessionRepo, encryptionService, adminClient, entitlementService, synchronizer, apiKey, logger))

	// Webhook endpoint
	r.Post("/webhooks/shopify", webhookHandler(webhookVerifier, webhookDispatcher, logger))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info().Str("port", port).Int("blocks", len(catalog.Blocks())).Msg("Starting API server")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func connectMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// oauthInitHandler initiates the OAuth flow
func oauthInitHandler(sessions ports.SessionRepository, admin ports.AdminClient, appURL string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shop := domain.NormalizeShopDomain(r.URL.Query().Get("shop"))
		if shop == "" {
			http.Error(w, "shop parameter is required", http.StatusBadRequest)
			return
		}

		// Generate random state for CSRF protection
		stateBytes := make([]byte, 16)
		if _, err := rand.Read(stateBytes); err != nil {
			logger.Error().Err(err).Msg("Failed to generate state")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		state := hex.EncodeToString(stateBytes)

		// Save pending session holding the state nonce
		session := &domain.ShopSession{
			Shop:       shop,
			State:      domain.SessionPending,
			OAuthState: state,
		}
		if err := sessions.SaveSession(ctx, session); err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to save pending session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authURL := admin.GenerateAuthURL(shop, oauthScopes, appURL+"/auth/callback", state)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// oauthCallbackHandler handles the OAuth callback
func oauthCallbackHandler(
	sessions ports.SessionRepository,
	crypto ports.EncryptionService,
	admin ports.AdminClient,
	entitlements *application.EntitlementService,
	synchronizer *application.MetafieldSynchronizer,
	apiKey string,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shop := domain.NormalizeShopDomain(r.URL.Query().Get("shop"))
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		if shop == "" || code == "" || state == "" {
			http.Error(w, "Missing required parameters", http.StatusBadRequest)
			return
		}

		// Verify state against the pending session
		session, err := sessions.SessionByOAuthState(ctx, state)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get pending session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if session == nil || session.Shop != shop {
			http.Error(w, "Invalid session", http.StatusUnauthorized)
			return
		}

		// Exchange token
		accessToken, err := admin.ExchangeToken(ctx, shop, code)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange token")
			http.Error(w, "Failed to complete installation", http.StatusInternalServerError)
			return
		}

		encryptedToken, err := crypto.Encrypt(accessToken)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to encrypt access token")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		session.AccessToken = encryptedToken
		session.Scope = strings.Join(oauthScopes, ",")
		session.State = domain.SessionAuthenticated
		session.OAuthState = ""
		if err := sessions.SaveSession(ctx, session); err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to save session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info().Str("shop", shop).Msg("OAuth completed, session stored")

		// Initial sync so free-tier metafields exist before the theme editor
		// is opened. Best-effort: a failure here self-heals on the next sync.
		go func() {
			syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			ent, err := entitlements.Compute(syncCtx, shop)
			if err != nil {
				logger.Error().Err(err).Str("shop", shop).Msg("Initial entitlement compute failed")
				return
			}
			if _, err := synchronizer.Sync(syncCtx, shop, accessToken, ent, true); err != nil {
				logger.Error().Err(err).Str("shop", shop).Msg("Initial metafield sync failed")
			}
		}()

		// Back into the embedded admin
		http.Redirect(w, r, "https://"+shop+"/admin/apps/"+apiKey, http.StatusFound)
	}
}

// webhookHandler handles Shopify webhook requests
func webhookHandler(
	verifier *shopifyinfra.WebhookVerifier,
	dispatcher *application.WebhookDispatcher,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		topic := r.Header.Get("X-Shopify-Topic")
		if topic == "" {
			logger.Warn().Msg("Missing X-Shopify-Topic header")
			http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read webhook payload")
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		// Verify webhook signature
		hmacHeader := r.Header.Get("X-Shopify-Hmac-SHA256")
		if err := verifier.Verify(payload, hmacHeader); err != nil {
			logger.Warn().Err(err).Str("topic", topic).Msg("Webhook signature verification failed")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		// Extract shop domain from webhook payload
		var webhookData map[string]interface{}
		shop := ""
		if err := json.Unmarshal(payload, &webhookData); err == nil {
			if d, ok := webhookData["domain"].(string); ok {
				shop = d
			} else if d, ok := webhookData["myshopify_domain"].(string); ok {
				shop = d
			} else if d, ok := webhookData["shop_domain"].(string); ok {
				shop = d
			}
		}
		// Fallback: try to extract from X-Shopify-Shop-Domain header
		if shop == "" {
			shop = r.Header.Get("X-Shopify-Shop-Domain")
		}

		metrics.WebhookEvents.WithLabelValues(topic).Inc()

		event := &domain.WebhookEvent{
			Topic:    topic,
			Shop:     shop,
			Payload:  payload,
			Verified: true,
		}

		if err := dispatcher.Dispatch(ctx, event); err != nil {
			logger.Error().
				Err(err).
				Str("topic", topic).
				Str("shop", shop).
				Msg("Failed to dispatch webhook event")

			// Return 500 to trigger Shopify retry
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"received": "true",
		})
	}
}
