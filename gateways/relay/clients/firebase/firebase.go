package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuecard/backend/services/auth/entity"
)

const (
	defaultIdentityURL    = "https://identitytoolkit.googleapis.com"
	defaultSecureTokenURL = "https://securetoken.googleapis.com"
	defaultFirestoreURL   = "https://firestore.googleapis.com"

	maxRetries     = 3
	requestTimeout = 15 * time.Second
)

type Config struct {
	APIKey    string
	ProjectID string

	// Endpoint overrides, used by tests. Production leaves them empty.
	IdentityURL    string
	SecureTokenURL string
	FirestoreURL   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = defaultIdentityURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = defaultSecureTokenURL
	}
	if cfg.FirestoreURL == "" {
		cfg.FirestoreURL = defaultFirestoreURL
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

type signUpRequest struct {
	ReturnSecureToken bool `json:"returnSecureToken"`
}

type signUpResponse struct {
	IDToken string `json:"idToken"`
	LocalID string `json:"localId"`
}

// SignUpAnonymously creates a throwaway Firebase user and returns its ID
// token, used only to read the OAuth client config from Firestore.
func (c *Client) SignUpAnonymously(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts:signUp?key=%s", c.cfg.IdentityURL, c.cfg.APIKey)

	resp := signUpResponse{}
	if err := c.postJSON(ctx, endpoint, signUpRequest{ReturnSecureToken: true}, &resp); err != nil {
		return "", fmt.Errorf("failed anonymous sign-up: %w", err)
	}

	c.log.Debug("anonymous firebase user created", slog.String("local_id", resp.LocalID))
	return resp.IDToken, nil
}

type signInWithIdpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type signInWithIdpResponse struct {
	IDToken      string  `json:"idToken"`
	RefreshToken string  `json:"refreshToken"`
	ExpiresIn    string  `json:"expiresIn"`
	LocalID      string  `json:"localId"`
	Email        *string `json:"email"`
	DisplayName  *string `json:"displayName"`
}

// SignInWithIdp exchanges a Google ID token for a Firebase session.
func (c *Client) SignInWithIdp(ctx context.Context, googleIDToken string) (*entity.IdpTokens, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts:signInWithIdp?key=%s", c.cfg.IdentityURL, c.cfg.APIKey)

	req := signInWithIdpRequest{
		PostBody:            fmt.Sprintf("id_token=%s&providerId=google.com", googleIDToken),
		RequestURI:          "http://localhost",
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	}

	resp := signInWithIdpResponse{}
	if err := c.postJSON(ctx, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("failed idp sign-in: %w", err)
	}

	return &entity.IdpTokens{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		LocalID:      resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
	}, nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// RefreshIDToken trades a refresh token for a new Firebase ID token via the
// securetoken endpoint.
func (c *Client) RefreshIDToken(ctx context.Context, refreshToken string) (*entity.RefreshedTokens, error) {
	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.cfg.SecureTokenURL, c.cfg.APIKey)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp := refreshResponse{}
	if err := c.postForm(ctx, endpoint, form, &resp); err != nil {
		return nil, fmt.Errorf("failed token refresh: %w", err)
	}

	return &entity.RefreshedTokens{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

type firestoreDocument struct {
	Fields map[string]struct {
		StringValue string `json:"stringValue"`
	} `json:"fields"`
}

// FetchOAuthCredentials reads the Google OAuth client pair from the
// Configs/v-1 Firestore document.
func (c *Client) FetchOAuthCredentials(ctx context.Context, idToken string) (*entity.OAuthCredentials, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/projects/%s/databases/(default)/documents/Configs/v-1",
		c.cfg.FirestoreURL, c.cfg.ProjectID,
	)

	doc := firestoreDocument{}
	err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+idToken)
		return req, nil
	}, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read config document: %w", err)
	}

	clientID := doc.Fields["googleClientId"].StringValue
	clientSecret := doc.Fields["googleClientSecret"].StringValue
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("config document is missing oauth client fields")
	}

	return &entity.OAuthCredentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	encoded := form.Encode()

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, out)
}

// do executes the request with exponential backoff. Client errors are not
// retried; a 4xx will not get better on a second attempt.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error), out any) error {
	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data)))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
		}

		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx))
}
