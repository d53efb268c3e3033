package google

import (
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
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	maxRetries     = 3
	requestTimeout = 15 * time.Second
)

type Config struct {
	// TokenURL override, used by tests. Production leaves it empty.
	TokenURL string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	IDToken      *string `json:"id_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresIn    *int64  `json:"expires_in"`
	Scope        *string `json:"scope"`
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", redirectURI)
	form.Set("grant_type", "authorization_code")

	tokens, err := c.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	c.log.Debug("authorization code exchanged",
		slog.Bool("has_id_token", tokens.IDToken != nil),
		slog.Bool("has_refresh_token", tokens.RefreshToken != nil))
	return tokens, nil
}

// RefreshAccessToken trades a refresh token for a new access token.
func (c *Client) RefreshAccessToken(ctx context.Context, creds entity.OAuthCredentials, refreshToken string) (*entity.GoogleTokens, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("grant_type", "refresh_token")

	tokens, err := c.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return tokens, nil
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*entity.GoogleTokens, error) {
	encoded := form.Encode()

	resp := tokenResponse{}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}

		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("token endpoint returned %d: %s", httpResp.StatusCode, string(data)))
		}
		if httpResp.StatusCode >= 300 {
			return fmt.Errorf("token endpoint returned %d: %s", httpResp.StatusCode, string(data))
		}

		if err := json.Unmarshal(data, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode token response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)); err != nil {
		return nil, err
	}

	return &entity.GoogleTokens{
		AccessToken:  resp.AccessToken,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Scope:        resp.Scope,
	}, nil
}
