package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaking/internal/db"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/testutil"
)

func TestUserCounters(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewUserRepository(dbase)
	u := testutil.SeedUser(t, dbase, "alice", nil, nil)

	require.NoError(t, repo.IncrementNewLike(ctx, u.ID))
	require.NoError(t, repo.IncrementNewLike(ctx, u.ID))
	require.NoError(t, repo.IncrementUnread(ctx, u.ID))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.NewLike)
	assert.Equal(t, int64(1), got.MessageUnread)

	require.NoError(t, repo.ResetNewLike(ctx, u.ID))
	require.NoError(t, repo.SetUnread(ctx, u.ID, 7))

	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.NewLike)
	assert.Equal(t, int64(7), got.MessageUnread)
}

func TestUserEmailNormalized(t *testing.T) {
	dbase := testutil.NewDB(t)

	u := &db.User{Username: "bob", Email: "  Bob@Example.COM ", PasswordHash: testutil.Password()}
	require.NoError(t, dbase.Create(u).Error)
	assert.Equal(t, "bob@example.com", u.Email)

	// no password and no external identity
	err := dbase.Create(&db.User{Username: "carol", Email: "carol@test.com"}).Error
	assert.ErrorIs(t, err, db.ErrCredentialRequired)
}

func TestListByIDs(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewUserRepository(dbase)
	a := testutil.SeedUser(t, dbase, "a", nil, nil)
	b := testutil.SeedUser(t, dbase, "b", nil, nil)

	users, err := repo.ListByIDs(ctx, []uint64{a.ID, b.ID, 999})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "b", users[b.ID].Username)

	users, err = repo.ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDowngradeExpired(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewUserRepository(dbase)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := testutil.SeedUser(t, dbase, "expired", nil, nil)
	active := testutil.SeedUser(t, dbase, "active", nil, nil)
	plan, sub := "monthly", "sub_1"
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	require.NoError(t, dbase.Model(expired).Updates(map[string]any{
		"is_premium": true, "premium_expires_at": past, "premium_plan_type": plan, "stripe_subscription_id": sub,
	}).Error)
	require.NoError(t, dbase.Model(active).Updates(map[string]any{
		"is_premium": true, "premium_expires_at": future,
	}).Error)

	ids, err := repo.ExpiredPremiumIDs(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{expired.ID}, ids)

	changed, err := repo.DowngradeExpired(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)

	// second call is a no-op
	changed, err = repo.DowngradeExpired(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.DowngradeExpired(ctx, active.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
	assert.Nil(t, got.PremiumExpiresAt)
	assert.Nil(t, got.PremiumPlanType)
	assert.Nil(t, got.StripeSubscriptionID)
}
