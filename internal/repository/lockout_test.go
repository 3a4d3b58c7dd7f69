// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutStore_GetEmpty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	state, err := repo.Lockouts().Get(context.Background(), "otp:a@b.com")

	require.NoError(t, err)
	assert.Zero(t, state.FailedCount)
	assert.Nil(t, state.LockedUntil)
}

func TestLockoutStore_RecordFailure(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := repo.Lockouts()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	state, err := store.RecordFailure(ctx, "otp:a@b.com", now, 2, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCount)
	assert.False(t, state.Locked(now))

	state, err = store.RecordFailure(ctx, "otp:a@b.com", now, 2, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, state.FailedCount)
	assert.True(t, state.Locked(now))

	stored, err := store.Get(ctx, "otp:a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FailedCount)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, now.Add(15*time.Minute).Equal(*stored.LockedUntil))
}

func TestLockoutStore_RecordFailure_ResetsAfterLockExpires(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := repo.Lockouts()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.RecordFailure(ctx, "k", now, 1, time.Minute)
	require.NoError(t, err)

	later := now.Add(5 * time.Minute)
	state, err := store.RecordFailure(ctx, "k", later, 3, time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCount)
	assert.False(t, state.Locked(later))
}

func TestLockoutStore_RecordFailure_ForgetsStaleFailures(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := repo.Lockouts()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.RecordFailure(ctx, "k", now, 5, time.Minute)
	require.NoError(t, err)

	state, err := store.RecordFailure(ctx, "k", now.Add(48*time.Hour), 5, time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCount)
}

func TestLockoutStore_Clear(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	store := repo.Lockouts()
	ctx := context.Background()

	_, err := store.RecordFailure(ctx, "k", time.Now(), 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "k"))

	state, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, state.FailedCount)
	assert.Nil(t, state.LockedUntil)
}
