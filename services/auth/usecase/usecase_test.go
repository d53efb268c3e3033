package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuecard/backend/services/auth/entity"
	"github.com/cuecard/backend/services/auth/storage"
)

type fakeFirebase struct {
	signUp     func(ctx context.Context) (string, error)
	signInIdp  func(ctx context.Context, googleIDToken string) (*entity.IdpTokens, error)
	refresh    func(ctx context.Context, refreshToken string) (*entity.RefreshedTokens, error)
	fetchCreds func(ctx context.Context, idToken string) (*entity.OAuthCredentials, error)
}

func (f *fakeFirebase) SignUpAnonymously(ctx context.Context) (string, error) {
	if f.signUp == nil {
		return "", fmt.Errorf("unexpected SignUpAnonymously call")
	}
	return f.signUp(ctx)
}

func (f *fakeFirebase) SignInWithIdp(ctx context.Context, googleIDToken string) (*entity.IdpTokens, error) {
	if f.signInIdp == nil {
		return nil, fmt.Errorf("unexpected SignInWithIdp call")
	}
	return f.signInIdp(ctx, googleIDToken)
}

func (f *fakeFirebase) RefreshIDToken(ctx context.Context, refreshToken string) (*entity.RefreshedTokens, error) {
	if f.refresh == nil {
		return nil, fmt.Errorf("unexpected RefreshIDToken call")
	}
	return f.refresh(ctx, refreshToken)
}

func (f *fakeFirebase) FetchOAuthCredentials(ctx context.Context, idToken string) (*entity.OAuthCredentials, error) {
	if f.fetchCreds == nil {
		return nil, fmt.Errorf("unexpected FetchOAuthCredentials call")
	}
	return f.fetchCreds(ctx, idToken)
}

type fakeGoogle struct {
	exchange func(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error)
	refresh  func(ctx context.Context, creds entity.OAuthCredentials, refreshToken string) (*entity.GoogleTokens, error)
}

func (f *fakeGoogle) ExchangeCode(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error) {
	if f.exchange == nil {
		return nil, fmt.Errorf("unexpected ExchangeCode call")
	}
	return f.exchange(ctx, creds, code, redirectURI)
}

func (f *fakeGoogle) RefreshAccessToken(ctx context.Context, creds entity.OAuthCredentials, refreshToken string) (*entity.GoogleTokens, error) {
	if f.refresh == nil {
		return nil, fmt.Errorf("unexpected RefreshAccessToken call")
	}
	return f.refresh(ctx, creds, refreshToken)
}

func newTestUsecase(t *testing.T, firebase *fakeFirebase, google *fakeGoogle) (*usecase, storage.Storage) {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	store, err := storage.New(db)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := New(Config{RedirectURI: "http://127.0.0.1:3642/oauth/callback"}, store, firebase, google, log).(*usecase)
	uc.now = func() time.Time { return time.Unix(1_000_000, 0) }
	return uc, store
}

func strptr(s string) *string { return &s }

func i64ptr(v int64) *int64 { return &v }

func TestAuthURL_BootstrapsCredentials(t *testing.T) {
	ctx := context.Background()
	firebase := &fakeFirebase{
		signUp: func(ctx context.Context) (string, error) { return "anon-token", nil },
		fetchCreds: func(ctx context.Context, idToken string) (*entity.OAuthCredentials, error) {
			assert.Equal(t, "anon-token", idToken)
			return &entity.OAuthCredentials{ClientID: "client-1", ClientSecret: "secret-1"}, nil
		},
	}
	uc, store := newTestUsecase(t, firebase, &fakeGoogle{})

	authURL, err := uc.AuthURL(ctx, ScopeProfile)
	require.NoError(t, err)

	assert.Contains(t, authURL, "client_id=client-1")
	assert.Contains(t, authURL, "access_type=offline")
	assert.Contains(t, authURL, "prompt=consent")
	assert.Contains(t, authURL, "scope=openid+profile+email")

	// Credentials survive a restart.
	persisted, err := store.LoadOAuthCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "client-1", persisted.ClientID)
}

func TestAuthURL_ReusesCredentials(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})
	uc.credentials = &entity.OAuthCredentials{ClientID: "cached", ClientSecret: "s"}

	authURL, err := uc.AuthURL(ctx, ScopeSlides)
	require.NoError(t, err)
	assert.Contains(t, authURL, "client_id=cached")
	assert.Contains(t, authURL, "presentations.readonly")
}

func TestHandleCallback_ProfileScope(t *testing.T) {
	ctx := context.Background()
	firebase := &fakeFirebase{
		signInIdp: func(ctx context.Context, googleIDToken string) (*entity.IdpTokens, error) {
			assert.Equal(t, "google-id-token", googleIDToken)
			return &entity.IdpTokens{
				IDToken:      "fb-id-token",
				RefreshToken: "fb-refresh",
				ExpiresIn:    "3600",
				LocalID:      "uid-1",
				Email:        strptr("speaker@example.com"),
				DisplayName:  strptr("Speaker"),
			}, nil
		},
	}
	google := &fakeGoogle{
		exchange: func(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error) {
			assert.Equal(t, "auth-code", code)
			return &entity.GoogleTokens{AccessToken: "ga", IDToken: strptr("google-id-token")}, nil
		},
	}
	uc, store := newTestUsecase(t, firebase, google)
	uc.credentials = &entity.OAuthCredentials{ClientID: "c", ClientSecret: "s"}
	uc.pendingScope = ScopeProfile

	result, err := uc.HandleCallback(ctx, "auth-code")
	require.NoError(t, err)

	assert.True(t, result.Authenticated)
	assert.False(t, result.SlidesAuthorized)
	assert.Equal(t, "Speaker", *result.UserName)

	tokens, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "fb-id-token", tokens.IDToken)
	// Opaque ID token: expiry comes from expires_in.
	assert.Equal(t, int64(1_000_000+3600), tokens.ExpiresAt)

	assert.Equal(t, entity.Status{Authenticated: true}, uc.Status())
}

func TestHandleCallback_SlidesScope(t *testing.T) {
	ctx := context.Background()
	google := &fakeGoogle{
		exchange: func(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error) {
			return &entity.GoogleTokens{
				AccessToken:  "slides-access",
				RefreshToken: strptr("slides-refresh"),
				ExpiresIn:    i64ptr(3599),
			}, nil
		},
	}
	uc, store := newTestUsecase(t, &fakeFirebase{}, google)
	uc.credentials = &entity.OAuthCredentials{ClientID: "c", ClientSecret: "s"}
	uc.pendingScope = ScopeSlides

	result, err := uc.HandleCallback(ctx, "auth-code")
	require.NoError(t, err)
	assert.True(t, result.SlidesAuthorized)

	tokens, err := store.LoadSlidesTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "slides-access", tokens.AccessToken)
	assert.Equal(t, int64(1_000_000+3599), *tokens.ExpiresAt)
}

func TestHandleCallback_NoPendingCredentials(t *testing.T) {
	uc, _ := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})

	_, err := uc.HandleCallback(context.Background(), "code")
	assert.Error(t, err)
}

func TestFirebaseToken_FreshTokenReturnedAsIs(t *testing.T) {
	uc, _ := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})
	uc.firebaseTokens = &entity.FirebaseTokens{
		IDToken:      "fresh",
		RefreshToken: "r",
		ExpiresAt:    uc.now().Unix() + 3600,
	}

	token, err := uc.FirebaseToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
}

func TestFirebaseToken_RefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	firebase := &fakeFirebase{
		refresh: func(ctx context.Context, refreshToken string) (*entity.RefreshedTokens, error) {
			assert.Equal(t, "old-refresh", refreshToken)
			return &entity.RefreshedTokens{IDToken: "new-id", RefreshToken: "new-refresh", ExpiresIn: "3600"}, nil
		},
	}
	uc, store := newTestUsecase(t, firebase, &fakeGoogle{})
	uc.firebaseTokens = &entity.FirebaseTokens{
		IDToken:      "old-id",
		RefreshToken: "old-refresh",
		// Inside the refresh window.
		ExpiresAt: uc.now().Unix() + 100,
		Email:     strptr("speaker@example.com"),
		LocalID:   "uid-1",
	}

	token, err := uc.FirebaseToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-id", token)

	persisted, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "new-refresh", persisted.RefreshToken)
	// Identity fields carry over from the previous session.
	assert.Equal(t, "uid-1", persisted.LocalID)
	assert.Equal(t, "speaker@example.com", *persisted.Email)
}

func TestFirebaseToken_NotAuthenticated(t *testing.T) {
	uc, _ := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})

	_, err := uc.FirebaseToken(context.Background())
	assert.Error(t, err)
}

func TestSlidesToken_RefreshKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	google := &fakeGoogle{
		refresh: func(ctx context.Context, creds entity.OAuthCredentials, refreshToken string) (*entity.GoogleTokens, error) {
			assert.Equal(t, "keep-me", refreshToken)
			// Google omits the refresh token on refresh responses.
			return &entity.GoogleTokens{AccessToken: "new-access", ExpiresIn: i64ptr(3600)}, nil
		},
	}
	uc, _ := newTestUsecase(t, &fakeFirebase{}, google)
	uc.credentials = &entity.OAuthCredentials{ClientID: "c", ClientSecret: "s"}
	uc.slidesTokens = &entity.SlidesTokens{
		AccessToken:  "stale",
		RefreshToken: strptr("keep-me"),
		ExpiresAt:    i64ptr(uc.now().Unix() + 10),
	}

	token, err := uc.SlidesToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)

	uc.mu.RLock()
	defer uc.mu.RUnlock()
	require.NotNil(t, uc.slidesTokens.RefreshToken)
	assert.Equal(t, "keep-me", *uc.slidesTokens.RefreshToken)
}

func TestSlidesToken_ExpiredWithoutRefreshTokenReturnedAsIs(t *testing.T) {
	uc, _ := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})
	uc.slidesTokens = &entity.SlidesTokens{
		AccessToken: "stale",
		ExpiresAt:   i64ptr(uc.now().Unix() - 10),
	}

	// Nothing to refresh with; the caller gets the stale token and the API
	// call will surface the 401.
	token, err := uc.SlidesToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stale", token)
}

func TestBootstrapAndLogout(t *testing.T) {
	ctx := context.Background()
	uc, store := newTestUsecase(t, &fakeFirebase{}, &fakeGoogle{})

	require.NoError(t, store.SaveFirebaseTokens(ctx, &entity.FirebaseTokens{
		IDToken: "persisted", RefreshToken: "r", ExpiresAt: uc.now().Unix() + 3600, LocalID: "uid-1",
	}))
	require.NoError(t, store.SaveSlidesTokens(ctx, &entity.SlidesTokens{AccessToken: "sa"}))

	require.NoError(t, uc.Bootstrap(ctx))
	assert.Equal(t, entity.Status{Authenticated: true, SlidesAuthorized: true}, uc.Status())

	info, err := uc.UserInfo()
	require.NoError(t, err)
	assert.Equal(t, "uid-1", info.LocalID)

	require.NoError(t, uc.Logout(ctx))
	assert.Equal(t, entity.Status{}, uc.Status())

	tokens, err := store.LoadFirebaseTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)
}
