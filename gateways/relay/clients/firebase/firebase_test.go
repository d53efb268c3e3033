package firebase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSignUpAnonymously(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signUp", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["returnSecureToken"])

		_, _ = w.Write([]byte(`{"idToken": "anon-id-token", "localId": "anon-uid"}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", IdentityURL: server.URL}, discardLogger())

	token, err := client.SignUpAnonymously(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anon-id-token", token)
}

func TestSignInWithIdp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signInWithIdp", r.URL.Path)

		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "id_token=google-token&providerId=google.com", body["postBody"])

		_, _ = w.Write([]byte(`{
			"idToken": "fb-id", "refreshToken": "fb-refresh", "expiresIn": "3600",
			"localId": "uid-1", "email": "speaker@example.com", "displayName": "Speaker"
		}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", IdentityURL: server.URL}, discardLogger())

	tokens, err := client.SignInWithIdp(context.Background(), "google-token")
	require.NoError(t, err)
	assert.Equal(t, "fb-id", tokens.IDToken)
	assert.Equal(t, "3600", tokens.ExpiresIn)
	require.NotNil(t, tokens.Email)
	assert.Equal(t, "speaker@example.com", *tokens.Email)
}

func TestRefreshIDToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		_, _ = w.Write([]byte(`{"id_token": "new-id", "refresh_token": "new-refresh", "expires_in": "3600"}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", SecureTokenURL: server.URL}, discardLogger())

	tokens, err := client.RefreshIDToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-id", tokens.IDToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
}

func TestFetchOAuthCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/test-project/databases/(default)/documents/Configs/v-1", r.URL.Path)
		assert.Equal(t, "Bearer anon-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"fields": {
			"googleClientId": {"stringValue": "client-1"},
			"googleClientSecret": {"stringValue": "secret-1"}
		}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", ProjectID: "test-project", FirestoreURL: server.URL}, discardLogger())

	creds, err := client.FetchOAuthCredentials(context.Background(), "anon-token")
	require.NoError(t, err)
	assert.Equal(t, "client-1", creds.ClientID)
	assert.Equal(t, "secret-1", creds.ClientSecret)
}

func TestFetchOAuthCredentials_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields": {}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", ProjectID: "p", FirestoreURL: server.URL}, discardLogger())

	_, err := client.FetchOAuthCredentials(context.Background(), "anon-token")
	assert.Error(t, err)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error": {"message": "INVALID_REFRESH_TOKEN"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", SecureTokenURL: server.URL}, discardLogger())

	_, err := client.RefreshIDToken(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_REFRESH_TOKEN")
	assert.Equal(t, 1, calls)
}
