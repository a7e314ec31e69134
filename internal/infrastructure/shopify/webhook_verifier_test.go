package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifier_Verify_OK(t *testing.T) {
	v := NewWebhookVerifier("shared-secret")
	payload := []byte(`{"app_subscription": {"status": "ACTIVE"}}`)

	require.NoError(t, v.Verify(payload, signPayload("shared-secret", payload)))
}

func TestWebhookVerifier_Verify_WrongSecret(t *testing.T) {
	v := NewWebhookVerifier("shared-secret")
	payload := []byte(`{}`)

	require.Error(t, v.Verify(payload, signPayload("other-secret", payload)))
}

func TestWebhookVerifier_Verify_TamperedPayload(t *testing.T) {
	v := NewWebhookVerifier("shared-secret")
	signature := signPayload("shared-secret", []byte(`{"status": "active"}`))

	require.Error(t, v.Verify([]byte(`{"status": "cancelled"}`), signature))
}

func TestWebhookVerifier_Verify_MissingHeader(t *testing.T) {
	v := NewWebhookVerifier("shared-secret")

	require.Error(t, v.Verify([]byte(`{}`), ""))
}
