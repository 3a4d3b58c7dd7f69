// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/bulletcraft/bulletcraft/internal/services/identity"
	"github.com/bulletcraft/bulletcraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a@b.com", "a@b.com"},
		{"  A@B.Com ", "a@b.com"},
		{"\tUSER@EXAMPLE.ORG\n", "user@example.org"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.NormalizeEmail(tt.in))
		})
	}
}

func TestResolve_CreatesUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	r := identity.NewResolver(repo, nil)

	user, err := r.Resolve(context.Background(), "A@B.com", "Ada")

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestResolve_Idempotent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	r := identity.NewResolver(repo, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "a@b.com", "Ada")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, " A@B.COM", "Someone Else")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.Name)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestResolve_ExistingUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	existing := testutil.NewTestUser(t, repo, "a@b.com")
	r := identity.NewResolver(repo, nil)

	user, err := r.Resolve(context.Background(), "a@b.com", "")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
}

func TestResolve_EmptyEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	r := identity.NewResolver(repo, nil)

	_, err := r.Resolve(context.Background(), "  ", "Ada")

	assert.Error(t, err)
}

func TestResolve_Concurrent(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	r := identity.NewResolver(repo, nil)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			user, err := r.Resolve(ctx, "race@b.com", "")
			if assert.NoError(t, err) {
				ids[i] = user.ID
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
