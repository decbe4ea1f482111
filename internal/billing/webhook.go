package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"post-or-nah/backend/internal/store"
)

const eventCheckoutCompleted = "checkout.session.completed"

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
)

// Settlement describes what a webhook delivery did.
type Settlement struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	Credits   int    `json:"credits,omitempty"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   string `json:"ignored,omitempty"`
}

// Webhooks settles Stripe checkout events into credit grants.
type Webhooks struct {
	meter  *Meter
	secret string
}

// NewWebhooks verifies deliveries with the endpoint signing secret.
func NewWebhooks(meter *Meter, secret string) *Webhooks {
	return &Webhooks{meter: meter, secret: strings.TrimSpace(secret)}
}

// Handle verifies and applies one delivery. Each Stripe event id grants
// credits at most once; redeliveries are reported as duplicates.
func (w *Webhooks) Handle(ctx context.Context, payload []byte, signature string) (Settlement, error) {
	if w.secret == "" {
		return Settlement{}, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Settlement{EventID: event.ID, Type: string(event.Type)}
	log := logrus.WithFields(logrus.Fields{"event_id": event.ID, "type": out.Type})
	if out.Type != eventCheckoutCompleted {
		out.Ignored = "unhandled event type"
		log.Debug("webhook ignored")
		return out, nil
	}
	if event.Data == nil {
		out.Ignored = "missing event data"
		log.Warn("webhook ignored")
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		out.Ignored = "malformed checkout session"
		log.WithError(err).Warn("webhook ignored")
		return out, nil
	}
	switch status := string(session.PaymentStatus); status {
	case "", "paid", "no_payment_required":
	default:
		out.Ignored = "payment status " + status
		log.Info("webhook ignored")
		return out, nil
	}

	out.UserID = strings.TrimSpace(session.ClientReferenceID)
	if out.UserID == "" {
		out.Ignored = "missing client_reference_id"
		log.Warn("webhook ignored")
		return out, nil
	}
	out.Credits = w.creditsFor(session.Metadata)
	if out.Credits <= 0 {
		out.Ignored = "no credits in metadata"
		log.WithField("user", out.UserID).Warn("webhook ignored")
		return out, nil
	}

	_, err = w.meter.grant(ctx, out.UserID, out.Credits, "checkout "+session.ID, event.ID)
	if errors.Is(err, store.ErrDuplicateGrant) {
		out.Duplicate = true
		log.Info("webhook already settled")
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("grant credits: %w", err)
	}
	out.Applied = true
	return out, nil
}

func (w *Webhooks) creditsFor(metadata map[string]string) int {
	if raw := strings.TrimSpace(metadata["credits"]); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	if credits, ok := w.meter.CreditsForPrice(metadata["price_id"]); ok {
		return credits
	}
	return 0
}
