package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrDuplicateGrant reports a credit grant whose external id was already applied.
var ErrDuplicateGrant = errors.New("credit grant already applied")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Account{}, &UsageEvent{}, &CreditGrant{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureAccount returns the account for id, creating it with freeLimit free
// reviews on first sight.
func (d *Database) EnsureAccount(ctx context.Context, id string, freeLimit int) (*Account, error) {
	id = normalizeAccountID(id)
	if id == "" {
		return nil, errors.New("account id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var account Account
	if err := d.gorm.WithContext(ctx).Where(Account{ID: id}).Attrs(Account{FreeLimit: freeLimit}).FirstOrCreate(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount loads an account; gorm.ErrRecordNotFound when absent.
func (d *Database) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := d.gorm.WithContext(ctx).First(&account, "id = ?", normalizeAccountID(id)).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// ConsumeFree uses one free review if any remain.
func (d *Database) ConsumeFree(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND free_used < free_limit", normalizeAccountID(id)).
		Updates(map[string]any{"free_used": gorm.Expr("free_used + 1"), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConsumeCredit spends one credit if the balance is positive.
func (d *Database) ConsumeCredit(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.WithContext(ctx).Model(&Account{}).
		Where("id = ? AND credits > 0", normalizeAccountID(id)).
		Updates(map[string]any{"credits": gorm.Expr("credits - 1"), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyGrant appends the grant to the ledger and adds its credits to the
// account in one transaction. A grant whose ExternalID was already recorded
// returns ErrDuplicateGrant and changes nothing.
func (d *Database) ApplyGrant(ctx context.Context, grant *CreditGrant, freeLimit int) (*Account, error) {
	if grant == nil {
		return nil, errors.New("grant is nil")
	}
	grant.AccountID = normalizeAccountID(grant.AccountID)
	if grant.AccountID == "" {
		return nil, errors.New("account id is required")
	}
	if grant.Credits <= 0 {
		return nil, errors.New("credits must be positive")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var account Account
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if grant.ExternalID != nil {
			var count int64
			if err := tx.Model(&CreditGrant{}).Where("external_id = ?", *grant.ExternalID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateGrant
			}
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Account{ID: grant.AccountID, FreeLimit: freeLimit}).Error; err != nil {
			return err
		}
		if err := tx.Create(grant).Error; err != nil {
			return err
		}
		if err := tx.Model(&Account{}).Where("id = ?", grant.AccountID).
			Updates(map[string]any{"credits": gorm.Expr("credits + ?", grant.Credits), "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		return tx.First(&account, "id = ?", grant.AccountID).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// RecordUsage stores a usage event. Request ids are scoped to the account, so
// only a repeat from the same account updates an existing row.
func (d *Database) RecordUsage(ctx context.Context, event *UsageEvent) error {
	if event == nil {
		return errors.New("usage event is nil")
	}
	event.AccountID = normalizeAccountID(event.AccountID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "source", "model", "charge", "latency_ms"}),
	}).Create(event).Error
}

// ListUsage returns the newest usage events for an account.
func (d *Database) ListUsage(ctx context.Context, accountID string, offset, limit int) ([]UsageEvent, int64, error) {
	accountID = normalizeAccountID(accountID)
	var total int64
	if err := d.gorm.WithContext(ctx).Model(&UsageEvent{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	var rows []UsageEvent
	if err := d.gorm.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListGrants returns the credit ledger for an account, newest first.
func (d *Database) ListGrants(ctx context.Context, accountID string) ([]CreditGrant, error) {
	var rows []CreditGrant
	if err := d.gorm.WithContext(ctx).Where("account_id = ?", normalizeAccountID(accountID)).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeAccountID(value string) string {
	return strings.TrimSpace(value)
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"DROP INDEX IF EXISTS idx_usage_events_request_id",
		"CREATE INDEX IF NOT EXISTS idx_usage_events_account_created ON usage_events(account_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_credit_grants_account ON credit_grants(account_id)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
