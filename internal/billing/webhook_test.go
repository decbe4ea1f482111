package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := fmt.Fprintf(mac, "%d.%s", ts, payload)
	require.NoError(t, err)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEvent(id, user string, metadata string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "client_reference_id": %q,
    "payment_status": "paid",
    "metadata": %s
  }}
}`, id, user, metadata))
}

func TestWebhookGrantsCreditsOnce(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMeter(t, Config{Enabled: true, FreeLimit: 3})
	w := NewWebhooks(m, testSecret)

	payload := checkoutEvent("evt_1", "buyer", `{"credits":"10"}`)
	out, err := w.Handle(ctx, payload, sign(t, payload, testSecret))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.Equal(t, "buyer", out.UserID)
	require.Equal(t, 10, out.Credits)

	out, err = w.Handle(ctx, payload, sign(t, payload, testSecret))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.True(t, out.Duplicate)

	usage, err := m.Usage(ctx, "buyer")
	require.NoError(t, err)
	require.Equal(t, 10, usage.Credits)
}

func TestWebhookCreditPack(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMeter(t, Config{Enabled: true, CreditPacks: map[string]int{"price_pack": 25}})
	w := NewWebhooks(m, testSecret)

	payload := checkoutEvent("evt_pack", "buyer", `{"price_id":"price_pack"}`)
	out, err := w.Handle(ctx, payload, sign(t, payload, testSecret))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.Equal(t, 25, out.Credits)
}

func TestWebhookIgnoresUnusableEvents(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMeter(t, Config{Enabled: true})
	w := NewWebhooks(m, testSecret)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"other type", []byte(`{"id":"evt_x","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)},
		{"missing user", checkoutEvent("evt_nouser", "", `{"credits":"5"}`)},
		{"no credits", checkoutEvent("evt_nocredits", "buyer", `{}`)},
		{"unknown pack", checkoutEvent("evt_nopack", "buyer", `{"price_id":"nope"}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := w.Handle(ctx, tc.payload, sign(t, tc.payload, testSecret))
			require.NoError(t, err)
			require.False(t, out.Applied)
			require.NotEmpty(t, out.Ignored)
		})
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMeter(t, Config{Enabled: true})

	payload := checkoutEvent("evt_1", "buyer", `{"credits":"10"}`)
	_, err := NewWebhooks(m, testSecret).Handle(ctx, payload, sign(t, payload, "whsec_other"))
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewWebhooks(m, testSecret).Handle(ctx, payload, "")
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewWebhooks(m, "").Handle(ctx, payload, sign(t, payload, testSecret))
	require.ErrorIs(t, err, ErrWebhookNotConfigured)
}
