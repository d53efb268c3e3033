package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuecard/backend/services/auth/entity"
)

func newTestStorage(t *testing.T) Storage {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func TestFirebaseTokensRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	email := "speaker@example.com"
	saved := &entity.FirebaseTokens{
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    1_700_000_000,
		Email:        &email,
		LocalID:      "uid-1",
	}
	require.NoError(t, store.SaveFirebaseTokens(ctx, saved))

	loaded, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved, loaded)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	tokens, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	slides, err := store.LoadSlidesTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, slides)

	creds, err := store.LoadOAuthCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.SaveOAuthCredentials(ctx, &entity.OAuthCredentials{ClientID: "first"}))
	require.NoError(t, store.SaveOAuthCredentials(ctx, &entity.OAuthCredentials{ClientID: "second"}))

	creds, err := store.LoadOAuthCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "second", creds.ClientID)
}

func TestSlidesTokensOptionalFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.SaveSlidesTokens(ctx, &entity.SlidesTokens{AccessToken: "access-only"}))

	loaded, err := store.LoadSlidesTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "access-only", loaded.AccessToken)
	assert.Nil(t, loaded.RefreshToken)
	assert.Nil(t, loaded.ExpiresAt)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.SaveFirebaseTokens(ctx, &entity.FirebaseTokens{IDToken: "a"}))
	require.NoError(t, store.SaveSlidesTokens(ctx, &entity.SlidesTokens{AccessToken: "b"}))
	require.NoError(t, store.SaveOAuthCredentials(ctx, &entity.OAuthCredentials{ClientID: "c"}))

	require.NoError(t, store.Clear(ctx))

	tokens, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	slides, err := store.LoadSlidesTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, slides)

	creds, err := store.LoadOAuthCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}
