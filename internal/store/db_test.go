package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "store.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	acct, err := db.EnsureAccount(ctx, " user-1 ", 3)
	require.NoError(t, err)
	require.Equal(t, "user-1", acct.ID)
	require.Equal(t, 3, acct.FreeLimit)
	require.Equal(t, 3, acct.FreeRemaining())

	again, err := db.EnsureAccount(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Equal(t, 3, again.FreeLimit, "existing limit kept")

	_, err = db.EnsureAccount(ctx, "  ", 3)
	require.Error(t, err)
}

func TestGetAccountMissing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.GetAccount(ctx, "ghost")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestConsumeFreeStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.EnsureAccount(ctx, "u", 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := db.ConsumeFree(ctx, "u")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := db.ConsumeFree(ctx, "u")
	require.NoError(t, err)
	require.False(t, ok)

	acct, err := db.GetAccount(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, 2, acct.FreeUsed)
	require.Equal(t, 0, acct.FreeRemaining())
}

func TestConsumeCreditRequiresBalance(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.EnsureAccount(ctx, "u", 0)
	require.NoError(t, err)

	ok, err := db.ConsumeCredit(ctx, "u")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = db.ApplyGrant(ctx, &CreditGrant{AccountID: "u", Credits: 1, Reason: "test"}, 0)
	require.NoError(t, err)

	ok, err = db.ConsumeCredit(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)

	acct, err := db.GetAccount(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, 0, acct.Credits)
}

func TestApplyGrantIdempotentOnExternalID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	grant := &CreditGrant{AccountID: "buyer", Credits: 5, Reason: "checkout"}
	grant.SetExternalID("evt_123")
	acct, err := db.ApplyGrant(ctx, grant, 3)
	require.NoError(t, err)
	require.Equal(t, 5, acct.Credits)
	require.Equal(t, 3, acct.FreeLimit, "account created on first grant")

	dup := &CreditGrant{AccountID: "buyer", Credits: 5, Reason: "checkout"}
	dup.SetExternalID("evt_123")
	_, err = db.ApplyGrant(ctx, dup, 3)
	require.ErrorIs(t, err, ErrDuplicateGrant)

	acct, err = db.GetAccount(ctx, "buyer")
	require.NoError(t, err)
	require.Equal(t, 5, acct.Credits)

	grants, err := db.ListGrants(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestApplyGrantWithoutExternalIDAccumulates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for i := 0; i < 2; i++ {
		g := &CreditGrant{AccountID: "u", Credits: 2}
		g.SetExternalID("  ")
		_, err := db.ApplyGrant(ctx, g, 3)
		require.NoError(t, err)
	}
	acct, err := db.GetAccount(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, 4, acct.Credits)
}

func TestApplyGrantValidates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.ApplyGrant(ctx, nil, 3)
	require.Error(t, err)
	_, err = db.ApplyGrant(ctx, &CreditGrant{AccountID: "u", Credits: 0}, 3)
	require.Error(t, err)
	_, err = db.ApplyGrant(ctx, &CreditGrant{Credits: 1}, 3)
	require.Error(t, err)
}

func TestRecordAndListUsage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, db.RecordUsage(ctx, &UsageEvent{
			RequestID: id,
			AccountID: "u",
			Vibe:      "general",
			Label:     "Post ✅",
			Source:    "model",
			Charge:    ChargeFree,
		}))
	}
	require.NoError(t, db.RecordUsage(ctx, &UsageEvent{RequestID: "other", AccountID: "v", Charge: ChargeNone}))

	require.NoError(t, db.RecordUsage(ctx, &UsageEvent{RequestID: "r3", AccountID: "u", Label: "Nah ❌", Source: "heuristic", Charge: ChargeCredit}))

	rows, total, err := db.ListUsage(ctx, "u", 0, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 2)

	all, _, err := db.ListUsage(ctx, "u", 0, 0)
	require.NoError(t, err)
	var r3 UsageEvent
	for _, row := range all {
		if row.RequestID == "r3" {
			r3 = row
		}
	}
	require.Equal(t, "Nah ❌", r3.Label)
	require.Equal(t, ChargeCredit, r3.Charge)

	require.Error(t, db.RecordUsage(ctx, nil))
}

func TestRecordUsageScopesRequestIDToAccount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.RecordUsage(ctx, &UsageEvent{RequestID: "r-1", AccountID: "alice", Label: "Post ✅", Charge: ChargeFree}))
	require.NoError(t, db.RecordUsage(ctx, &UsageEvent{RequestID: "r-1", AccountID: "mallory", Label: "Nah ❌", Charge: ChargeCredit}))

	alice, total, err := db.ListUsage(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Post ✅", alice[0].Label)
	require.Equal(t, ChargeFree, alice[0].Charge)

	mallory, total, err := db.ListUsage(ctx, "mallory", 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Nah ❌", mallory[0].Label)
}
