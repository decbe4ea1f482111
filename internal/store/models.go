package store

import (
	"strings"
	"time"
)

// Account holds the metering state for one signed-in (or anonymous) user.
type Account struct {
	ID        string `gorm:"primaryKey;size:128"`
	FreeUsed  int
	FreeLimit int
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FreeRemaining returns how many free reviews are left.
func (a Account) FreeRemaining() int {
	if remaining := a.FreeLimit - a.FreeUsed; remaining > 0 {
		return remaining
	}
	return 0
}

// Charge kinds recorded on usage events.
const (
	ChargeFree   = "free"
	ChargeCredit = "credit"
	ChargeNone   = "none"
)

// UsageEvent records one review for metering. The verdict comment and the
// image are never stored.
type UsageEvent struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"size:64;uniqueIndex:idx_usage_account_request,priority:2"`
	AccountID string `gorm:"size:128;index;uniqueIndex:idx_usage_account_request,priority:1"`
	Vibe      string `gorm:"size:32"`
	Label     string `gorm:"size:32"`
	Source    string `gorm:"size:16;index"`
	Model     string `gorm:"size:128"`
	Charge    string `gorm:"size:16"`
	LatencyMs int64
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// CreditGrant is an append-only ledger entry for purchased or granted credits.
// ExternalID carries the payment provider event id and is unique when set.
type CreditGrant struct {
	ID         uint    `gorm:"primaryKey"`
	AccountID  string  `gorm:"size:128;index"`
	Credits    int     `gorm:"not null"`
	Reason     string  `gorm:"size:255"`
	ExternalID *string `gorm:"size:255;uniqueIndex"`
	CreatedAt  time.Time
}

// SetExternalID stores id, treating blank as unset.
func (g *CreditGrant) SetExternalID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		g.ExternalID = nil
		return
	}
	g.ExternalID = &id
}
