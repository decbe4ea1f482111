package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

var (
	ErrCheckoutNotConfigured = errors.New("stripe checkout not configured")
	ErrUnknownPack           = errors.New("price id is not a configured credit pack")
)

// CheckoutConfig holds the Stripe settings for hosted checkout. APIURL is
// only set to point at a test backend.
type CheckoutConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	APIURL     string
}

// CheckoutSession is the hosted payment page handed back to the caller.
type CheckoutSession struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	PriceID string `json:"price_id"`
	Credits int    `json:"credits"`
}

// Checkout opens Stripe checkout sessions for configured credit packs. The
// completed session comes back through Webhooks and is settled there.
type Checkout struct {
	meter  *Meter
	client session.Client
	cfg    CheckoutConfig
}

// NewCheckout builds a checkout client over meter's credit packs.
func NewCheckout(meter *Meter, cfg CheckoutConfig) (*Checkout, error) {
	if meter == nil {
		return nil, errors.New("checkout requires a meter")
	}
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if cfg.SecretKey == "" {
		return nil, ErrCheckoutNotConfigured
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, errors.New("checkout success and cancel urls are required")
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 20 * time.Second},
		LeveledLogger:     logrus.StandardLogger(),
		MaxNetworkRetries: stripe.Int64(1),
	}
	if url := strings.TrimSpace(cfg.APIURL); url != "" {
		backendCfg.URL = stripe.String(url)
		backendCfg.MaxNetworkRetries = stripe.Int64(0)
	}
	return &Checkout{
		meter:  meter,
		client: session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg), Key: cfg.SecretKey},
		cfg:    cfg,
	}, nil
}

// Start opens a payment session for one pack of priceID on behalf of user.
// The user id rides in client_reference_id and the pack in metadata so the
// webhook can grant credits without another lookup.
func (c *Checkout) Start(ctx context.Context, user, priceID string) (CheckoutSession, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return CheckoutSession{}, ErrUnknownAccount
	}
	priceID = strings.TrimSpace(priceID)
	credits, ok := c.meter.CreditsForPrice(priceID)
	if !ok {
		return CheckoutSession{}, fmt.Errorf("%w: %q", ErrUnknownPack, priceID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(user),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	params.AddMetadata("price_id", priceID)
	params.AddMetadata("credits", strconv.Itoa(credits))

	sess, err := c.client.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"user_id":    user,
		"price_id":   priceID,
		"credits":    credits,
	}).Info("checkout session created")
	return CheckoutSession{ID: sess.ID, URL: sess.URL, PriceID: priceID, Credits: credits}, nil
}
