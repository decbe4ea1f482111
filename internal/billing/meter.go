package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/store"
	"post-or-nah/backend/internal/verdict"
)

var (
	ErrQuotaExceeded  = errors.New("free reviews used up and no credits left")
	ErrUnknownAccount = errors.New("account id is required")
)

// Config controls metering.
type Config struct {
	Enabled     bool
	FreeLimit   int
	CreditPacks map[string]int
}

// Usage is the metering state exposed to a caller.
type Usage struct {
	UserID         string `json:"user_id"`
	FreeUsed       int    `json:"free_used"`
	FreeLimit      int    `json:"free_limit"`
	FreeRemaining  int    `json:"free_remaining"`
	Credits        int    `json:"credits"`
	BillingEnabled bool   `json:"billing_enabled"`
}

// Meter gates reviews on the free tier and purchased credits.
type Meter struct {
	db  *store.Database
	cfg Config
}

// NewMeter builds a meter over db.
func NewMeter(db *store.Database, cfg Config) *Meter {
	if cfg.FreeLimit < 0 {
		cfg.FreeLimit = 0
	}
	return &Meter{db: db, cfg: cfg}
}

// Enabled reports whether quotas are enforced.
func (m *Meter) Enabled() bool {
	return m.cfg.Enabled
}

// Authorize checks that user may run one more review. It creates the account
// on first sight.
func (m *Meter) Authorize(ctx context.Context, user string) (Usage, error) {
	usage, err := m.Usage(ctx, user)
	if err != nil {
		return usage, err
	}
	if !m.cfg.Enabled {
		return usage, nil
	}
	if usage.FreeRemaining == 0 && usage.Credits <= 0 {
		return usage, ErrQuotaExceeded
	}
	return usage, nil
}

// Charge records the review and spends a free slot or one credit for it.
// Error verdicts are recorded but never charged.
func (m *Meter) Charge(ctx context.Context, user string, result analyzer.Result) (Usage, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Usage{}, ErrUnknownAccount
	}
	if _, err := m.db.EnsureAccount(ctx, user, m.cfg.FreeLimit); err != nil {
		return Usage{}, fmt.Errorf("ensure account: %w", err)
	}

	charge := store.ChargeNone
	if m.cfg.Enabled && result.Verdict.Source != verdict.SourceError {
		var err error
		charge, err = m.spend(ctx, user)
		if err != nil {
			return Usage{}, err
		}
		if charge == store.ChargeNone {
			logrus.WithFields(logrus.Fields{
				"user":       user,
				"request_id": result.RequestID,
			}).Warn("review finished after quota ran out")
		}
	}

	if err := m.db.RecordUsage(ctx, &store.UsageEvent{
		RequestID: result.RequestID,
		AccountID: user,
		Vibe:      string(result.Vibe),
		Label:     string(result.Verdict.Label),
		Source:    string(result.Verdict.Source),
		Model:     result.Model,
		Charge:    charge,
		LatencyMs: result.LatencyMs,
	}); err != nil {
		return Usage{}, fmt.Errorf("record usage: %w", err)
	}
	return m.Usage(ctx, user)
}

func (m *Meter) spend(ctx context.Context, user string) (string, error) {
	ok, err := m.db.ConsumeFree(ctx, user)
	if err != nil {
		return "", fmt.Errorf("consume free review: %w", err)
	}
	if ok {
		return store.ChargeFree, nil
	}
	ok, err = m.db.ConsumeCredit(ctx, user)
	if err != nil {
		return "", fmt.Errorf("consume credit: %w", err)
	}
	if ok {
		return store.ChargeCredit, nil
	}
	return store.ChargeNone, nil
}

// Grant adds credits to user outside of a checkout.
func (m *Meter) Grant(ctx context.Context, user string, credits int, reason string) (Usage, error) {
	return m.grant(ctx, user, credits, reason, "")
}

func (m *Meter) grant(ctx context.Context, user string, credits int, reason, externalID string) (Usage, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Usage{}, ErrUnknownAccount
	}
	if credits <= 0 {
		return Usage{}, fmt.Errorf("credits must be positive, got %d", credits)
	}
	grant := &store.CreditGrant{AccountID: user, Credits: credits, Reason: strings.TrimSpace(reason)}
	grant.SetExternalID(externalID)
	account, err := m.db.ApplyGrant(ctx, grant, m.cfg.FreeLimit)
	if err != nil {
		return Usage{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user":    user,
		"credits": credits,
		"reason":  grant.Reason,
	}).Info("credits granted")
	return m.usageFor(account), nil
}

// Usage returns the metering state for user.
func (m *Meter) Usage(ctx context.Context, user string) (Usage, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Usage{}, ErrUnknownAccount
	}
	account, err := m.db.EnsureAccount(ctx, user, m.cfg.FreeLimit)
	if err != nil {
		return Usage{}, fmt.Errorf("ensure account: %w", err)
	}
	return m.usageFor(account), nil
}

// CreditsForPrice resolves a configured credit pack.
func (m *Meter) CreditsForPrice(priceID string) (int, bool) {
	credits, ok := m.cfg.CreditPacks[strings.TrimSpace(priceID)]
	return credits, ok && credits > 0
}

func (m *Meter) usageFor(account *store.Account) Usage {
	return Usage{
		UserID:         account.ID,
		FreeUsed:       account.FreeUsed,
		FreeLimit:      account.FreeLimit,
		FreeRemaining:  account.FreeRemaining(),
		Credits:        account.Credits,
		BillingEnabled: m.cfg.Enabled,
	}
}

// History returns the most recent usage events for user.
func (m *Meter) History(ctx context.Context, user string, limit int) ([]store.UsageEvent, int64, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, 0, ErrUnknownAccount
	}
	return m.db.ListUsage(ctx, user, 0, limit)
}
