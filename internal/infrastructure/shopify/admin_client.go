package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adedayo14/shopifycart-sub000/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const graphqlAPIVersion = "2024-07"

type adminClient struct {
	apiKey     string
	apiSecret  string
	app        goshopify.App
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewAdminClient creates a Shopify Admin API client adapter. Outbound calls
// are bounded by a 10 second timeout.
func NewAdminClient(apiKey, apiSecret string, logger zerolog.Logger) ports.AdminClient {
	return &adminClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// createClient is a helper to create a goshopify client.
func (c *adminClient) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// GenerateAuthURL builds the OAuth authorization URL. Shopify expects scopes
// comma-separated with no spaces.
func (c *adminClient) GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) string {
	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(strings.Join(scopes, ",")),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)
}

// ExchangeToken exchanges the authorization code for an access token.
func (c *adminClient) ExchangeToken(ctx context.Context, shop string, code string) (string, error) {
	token, err := c.app.GetAccessToken(ctx, shop, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	return token, nil
}

// GetRecurringCharge verifies a recurring application charge via the Admin
// REST API.
func (c *adminClient) GetRecurringCharge(ctx context.Context, shop string, accessToken string, chargeID string) (*ports.ChargeStatus, error) {
	id, err := strconv.ParseUint(chargeID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid recurring charge id %q: %w", chargeID, err)
	}

	client, err := c.createClient(shop, accessToken)
	if err != nil {
		return nil, err
	}

	charge, err := client.RecurringApplicationCharge.Get(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring charge %s: %w", chargeID, err)
	}

	status := &ports.ChargeStatus{
		ID:     chargeID,
		Name:   charge.Name,
		Status: charge.Status,
	}
	if charge.Test != nil {
		status.Test = *charge.Test
	}
	return status, nil
}

// GetOneTimeCharge verifies a one-time application charge via the Admin
// REST API.
func (c *adminClient) GetOneTimeCharge(ctx context.Context, shop string, accessToken string, chargeID string) (*ports.ChargeStatus, error) {
	id, err := strconv.ParseUint(chargeID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid one-time charge id %q: %w", chargeID, err)
	}

	client, err := c.createClient(shop, accessToken)
	if err != nil {
		return nil, err
	}

	charge, err := client.ApplicationCharge.Get(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get one-time charge %s: %w", chargeID, err)
	}

	status := &ports.ChargeStatus{
		ID:     chargeID,
		Name:   charge.Name,
		Status: charge.Status,
	}
	if charge.Test != nil {
		status.Test = *charge.Test
	}
	return status, nil
}

// graphqlRequest executes a GraphQL call against the Admin API. The
// go-shopify library covers REST; GraphQL goes over a direct HTTP call.
func (c *adminClient) graphqlRequest(ctx context.Context, shop string, accessToken string, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, graphqlAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GraphQL request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode GraphQL data: %w", err)
		}
	}
	return nil
}

// CurrentAppInstallationID resolves the app installation node the access
// metafields are attached to.
func (c *adminClient) CurrentAppInstallationID(ctx context.Context, shop string, accessToken string) (string, error) {
	var data struct {
		CurrentAppInstallation struct {
			ID string `json:"id"`
		} `json:"currentAppInstallation"`
	}

	query := `{ currentAppInstallation { id } }`
	if err := c.graphqlRequest(ctx, shop, accessToken, query, nil, &data); err != nil {
		return "", err
	}
	if data.CurrentAppInstallation.ID == "" {
		return "", fmt.Errorf("currentAppInstallation returned no id for %s", shop)
	}
	return data.CurrentAppInstallation.ID, nil
}

const metafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { key }
    userErrors { field message }
  }
}`

// SetMetafields submits all metafields in a single batched metafieldsSet
// mutation. Per-field user errors are mapped back to the rejected keys; only
// mutation-level failures are returned as errors.
func (c *adminClient) SetMetafields(ctx context.Context, shop string, accessToken string, inputs []ports.MetafieldInput) (*ports.MetafieldsSetResult, error) {
	if len(inputs) == 0 {
		return &ports.MetafieldsSetResult{}, nil
	}

	var data struct {
		MetafieldsSet struct {
			Metafields []struct {
				Key string `json:"key"`
			} `json:"metafields"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"metafieldsSet"`
	}

	variables := map[string]interface{}{"metafields": inputs}
	if err := c.graphqlRequest(ctx, shop, accessToken, metafieldsSetMutation, variables, &data); err != nil {
		return nil, err
	}

	result := &ports.MetafieldsSetResult{
		Written: len(data.MetafieldsSet.Metafields),
		Failed:  make(map[string]string),
	}
	for _, ue := range data.MetafieldsSet.UserErrors {
		// Field paths look like ["metafields", "3", "value"]; map the index
		// back to the input key it rejected.
		key := "unknown"
		if len(ue.Field) > 1 {
			if idx, err := strconv.Atoi(ue.Field[1]); err == nil && idx >= 0 && idx < len(inputs) {
				key = inputs[idx].Key
			}
		}
		result.Failed[key] = ue.Message
	}
	return result, nil
}
