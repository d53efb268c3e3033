package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cuecard/backend/pkg/jwt"
	"github.com/cuecard/backend/services/auth/entity"
	"github.com/cuecard/backend/services/auth/storage"
)

const (
	googleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	ScopeProfile = "profile"
	ScopeSlides  = "slides"

	scopeProfileURL = "openid profile email"
	scopeSlidesURL  = "https://www.googleapis.com/auth/presentations.readonly"

	// Tokens are refreshed when within this many seconds of expiry.
	refreshSkewSeconds = 300

	defaultExpiresInSeconds = 3600
)

// FirebaseAPI is the identitytoolkit/securetoken/Firestore surface the
// lifecycle needs.
type FirebaseAPI interface {
	SignUpAnonymously(ctx context.Context) (string, error)
	SignInWithIdp(ctx context.Context, googleIDToken string) (*entity.IdpTokens, error)
	RefreshIDToken(ctx context.Context, refreshToken string) (*entity.RefreshedTokens, error)
	FetchOAuthCredentials(ctx context.Context, idToken string) (*entity.OAuthCredentials, error)
}

// GoogleAPI is the oauth2 token endpoint surface.
type GoogleAPI interface {
	ExchangeCode(ctx context.Context, creds entity.OAuthCredentials, code, redirectURI string) (*entity.GoogleTokens, error)
	RefreshAccessToken(ctx context.Context, creds entity.OAuthCredentials, refreshToken string) (*entity.GoogleTokens, error)
}

type Config struct {
	RedirectURI string
}

type CallbackResult struct {
	Scope            string
	Authenticated    bool
	SlidesAuthorized bool
	UserName         *string
	UserEmail        *string
}

type Usecase interface {
	// Bootstrap restores persisted tokens and credentials into memory.
	Bootstrap(ctx context.Context) error

	// AuthURL ensures OAuth client credentials exist (bootstrapping them
	// anonymously from Firestore when missing), records scope as pending for
	// the callback, and returns the Google consent URL.
	AuthURL(ctx context.Context, scope string) (string, error)

	// HandleCallback exchanges the authorization code and routes the result
	// by the pending scope: profile logs into Firebase, anything else stores
	// a Slides API session.
	HandleCallback(ctx context.Context, code string) (*CallbackResult, error)

	// FirebaseToken returns a valid Firebase ID token, refreshing it when it
	// is about to expire.
	FirebaseToken(ctx context.Context) (string, error)

	// SlidesToken returns a valid Slides API access token, refreshing it
	// when about to expire and a refresh token is available.
	SlidesToken(ctx context.Context) (string, error)

	Status() entity.Status
	UserInfo() (*entity.UserInfo, error)
	Logout(ctx context.Context) error
}

type usecase struct {
	cfg      Config
	firebase FirebaseAPI
	google   GoogleAPI
	store    storage.Storage
	log      *slog.Logger

	mu             sync.RWMutex
	firebaseTokens *entity.FirebaseTokens
	slidesTokens   *entity.SlidesTokens
	credentials    *entity.OAuthCredentials
	pendingScope   string

	now func() time.Time
}

func New(cfg Config, store storage.Storage, firebase FirebaseAPI, google GoogleAPI, log *slog.Logger) Usecase {
	return &usecase{
		cfg:      cfg,
		firebase: firebase,
		google:   google,
		store:    store,
		log:      log,
		now:      time.Now,
	}
}

func (u *usecase) Bootstrap(ctx context.Context) error {
	u.log.Debug("restoring persisted auth state")

	firebaseTokens, err := u.store.LoadFirebaseTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load firebase tokens: %w", err)
	}
	slidesTokens, err := u.store.LoadSlidesTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load slides tokens: %w", err)
	}
	credentials, err := u.store.LoadOAuthCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to load oauth credentials: %w", err)
	}

	u.mu.Lock()
	u.firebaseTokens = firebaseTokens
	u.slidesTokens = slidesTokens
	u.credentials = credentials
	u.mu.Unlock()

	u.log.Info("auth state restored",
		slog.Bool("firebase_session", firebaseTokens != nil),
		slog.Bool("slides_session", slidesTokens != nil),
		slog.Bool("oauth_credentials", credentials != nil))
	return nil
}

func (u *usecase) AuthURL(ctx context.Context, scope string) (string, error) {
	if err := u.ensureCredentials(ctx); err != nil {
		return "", err
	}

	u.mu.Lock()
	u.pendingScope = scope
	credentials := *u.credentials
	u.mu.Unlock()

	var scopeURL string
	switch scope {
	case ScopeProfile:
		scopeURL = scopeProfileURL
	case ScopeSlides:
		scopeURL = scopeSlidesURL
	default:
		scopeURL = scopeProfileURL + " " + scopeSlidesURL
	}

	authURL := fmt.Sprintf(
		"%s?client_id=%s&redirect_uri=%s&response_type=code&scope=%s&access_type=offline&prompt=consent&include_granted_scopes=true",
		googleAuthURL,
		url.QueryEscape(credentials.ClientID),
		url.QueryEscape(u.cfg.RedirectURI),
		url.QueryEscape(scopeURL),
	)

	u.log.Debug("built auth url", slog.String("scope", scope))
	return authURL, nil
}

func (u *usecase) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	u.mu.Lock()
	scope := u.pendingScope
	u.pendingScope = ""
	credentials := u.credentials
	u.mu.Unlock()

	if credentials == nil {
		return nil, fmt.Errorf("oauth credentials not available")
	}

	u.log.Info("exchanging authorization code", slog.String("scope", scope))
	googleTokens, err := u.google.ExchangeCode(ctx, *credentials, code, u.cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if scope == ScopeProfile {
		return u.completeProfileLogin(ctx, scope, googleTokens)
	}
	return u.completeSlidesLogin(ctx, scope, googleTokens)
}

func (u *usecase) completeProfileLogin(ctx context.Context, scope string, googleTokens *entity.GoogleTokens) (*CallbackResult, error) {
	if googleTokens.IDToken == nil {
		return nil, fmt.Errorf("no id token received from google")
	}

	idp, err := u.firebase.SignInWithIdp(ctx, *googleTokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in with idp: %w", err)
	}

	tokens := &entity.FirebaseTokens{
		IDToken:      idp.IDToken,
		RefreshToken: idp.RefreshToken,
		ExpiresAt:    u.expiryFor(idp.IDToken, idp.ExpiresIn),
		Email:        idp.Email,
		LocalID:      idp.LocalID,
		DisplayName:  idp.DisplayName,
	}

	u.mu.Lock()
	u.firebaseTokens = tokens
	u.mu.Unlock()

	if err := u.store.SaveFirebaseTokens(ctx, tokens); err != nil {
		u.log.Error("failed to persist firebase tokens", slog.String("error", err.Error()))
	}
	if err := u.store.SaveOAuthCredentials(ctx, u.creds()); err != nil {
		u.log.Error("failed to persist oauth credentials", slog.String("error", err.Error()))
	}

	u.log.Info("firebase session established", slog.String("local_id", tokens.LocalID))
	return &CallbackResult{
		Scope:         scope,
		Authenticated: true,
		UserName:      tokens.DisplayName,
		UserEmail:     tokens.Email,
	}, nil
}

func (u *usecase) completeSlidesLogin(ctx context.Context, scope string, googleTokens *entity.GoogleTokens) (*CallbackResult, error) {
	tokens := &entity.SlidesTokens{
		AccessToken:  googleTokens.AccessToken,
		RefreshToken: googleTokens.RefreshToken,
	}
	if googleTokens.ExpiresIn != nil {
		expiresAt := u.now().Unix() + *googleTokens.ExpiresIn
		tokens.ExpiresAt = &expiresAt
	}

	u.mu.Lock()
	u.slidesTokens = tokens
	u.mu.Unlock()

	if err := u.store.SaveSlidesTokens(ctx, tokens); err != nil {
		u.log.Error("failed to persist slides tokens", slog.String("error", err.Error()))
	}

	u.log.Info("slides session established",
		slog.Bool("has_refresh_token", tokens.RefreshToken != nil))
	return &CallbackResult{
		Scope:            scope,
		Authenticated:    true,
		SlidesAuthorized: true,
	}, nil
}

func (u *usecase) FirebaseToken(ctx context.Context) (string, error) {
	u.mu.RLock()
	tokens := u.firebaseTokens
	u.mu.RUnlock()

	if tokens == nil {
		return "", fmt.Errorf("not authenticated")
	}

	if u.now().Unix() >= tokens.ExpiresAt-refreshSkewSeconds {
		u.log.Debug("firebase token expiring, refreshing")
		if err := u.refreshFirebaseTokens(ctx, tokens); err != nil {
			return "", err
		}
		u.mu.RLock()
		tokens = u.firebaseTokens
		u.mu.RUnlock()
	}

	return tokens.IDToken, nil
}

func (u *usecase) SlidesToken(ctx context.Context) (string, error) {
	u.mu.RLock()
	tokens := u.slidesTokens
	u.mu.RUnlock()

	if tokens == nil {
		return "", fmt.Errorf("not authenticated for slides")
	}

	expiring := tokens.ExpiresAt != nil && u.now().Unix() >= *tokens.ExpiresAt-refreshSkewSeconds
	if expiring && tokens.RefreshToken != nil {
		u.log.Debug("slides token expiring, refreshing")
		if err := u.refreshSlidesTokens(ctx, tokens); err != nil {
			return "", err
		}
		u.mu.RLock()
		tokens = u.slidesTokens
		u.mu.RUnlock()
	}

	return tokens.AccessToken, nil
}

func (u *usecase) Status() entity.Status {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return entity.Status{
		Authenticated:    u.firebaseTokens != nil,
		SlidesAuthorized: u.slidesTokens != nil,
	}
}

func (u *usecase) UserInfo() (*entity.UserInfo, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.firebaseTokens == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	return &entity.UserInfo{
		Email:   u.firebaseTokens.Email,
		Name:    u.firebaseTokens.DisplayName,
		LocalID: u.firebaseTokens.LocalID,
	}, nil
}

func (u *usecase) Logout(ctx context.Context) error {
	u.mu.Lock()
	u.firebaseTokens = nil
	u.slidesTokens = nil
	u.mu.Unlock()

	if err := u.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted tokens: %w", err)
	}

	u.log.Info("logged out")
	return nil
}

func (u *usecase) ensureCredentials(ctx context.Context) error {
	u.mu.RLock()
	have := u.credentials != nil
	u.mu.RUnlock()
	if have {
		return nil
	}

	u.log.Info("bootstrapping oauth credentials via anonymous sign-in")
	anonToken, err := u.firebase.SignUpAnonymously(ctx)
	if err != nil {
		return fmt.Errorf("failed anonymous sign-in: %w", err)
	}

	credentials, err := u.firebase.FetchOAuthCredentials(ctx, anonToken)
	if err != nil {
		return fmt.Errorf("failed to fetch oauth credentials: %w", err)
	}

	u.mu.Lock()
	u.credentials = credentials
	u.mu.Unlock()

	if err := u.store.SaveOAuthCredentials(ctx, credentials); err != nil {
		u.log.Error("failed to persist oauth credentials", slog.String("error", err.Error()))
	}

	u.log.Info("oauth credentials bootstrapped")
	return nil
}

func (u *usecase) refreshFirebaseTokens(ctx context.Context, current *entity.FirebaseTokens) error {
	refreshed, err := u.firebase.RefreshIDToken(ctx, current.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh firebase token: %w", err)
	}

	tokens := &entity.FirebaseTokens{
		IDToken:      refreshed.IDToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    u.expiryFor(refreshed.IDToken, refreshed.ExpiresIn),
		Email:        current.Email,
		LocalID:      current.LocalID,
		DisplayName:  current.DisplayName,
	}

	u.mu.Lock()
	u.firebaseTokens = tokens
	u.mu.Unlock()

	if err := u.store.SaveFirebaseTokens(ctx, tokens); err != nil {
		u.log.Error("failed to persist refreshed firebase tokens", slog.String("error", err.Error()))
	}
	return nil
}

func (u *usecase) refreshSlidesTokens(ctx context.Context, current *entity.SlidesTokens) error {
	u.mu.RLock()
	credentials := u.credentials
	u.mu.RUnlock()
	if credentials == nil {
		return fmt.Errorf("oauth credentials not available")
	}

	refreshed, err := u.google.RefreshAccessToken(ctx, *credentials, *current.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh slides token: %w", err)
	}

	tokens := &entity.SlidesTokens{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: current.RefreshToken,
	}
	if refreshed.RefreshToken != nil {
		tokens.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.ExpiresIn != nil {
		expiresAt := u.now().Unix() + *refreshed.ExpiresIn
		tokens.ExpiresAt = &expiresAt
	}

	u.mu.Lock()
	u.slidesTokens = tokens
	u.mu.Unlock()

	if err := u.store.SaveSlidesTokens(ctx, tokens); err != nil {
		u.log.Error("failed to persist refreshed slides tokens", slog.String("error", err.Error()))
	}
	return nil
}

// expiryFor prefers the ID token's exp claim over the advertised lifetime;
// the claim is authoritative when the token parses.
func (u *usecase) expiryFor(idToken, expiresIn string) int64 {
	if claims, err := jwt.Parse(idToken); err == nil {
		return claims.Expiry.Unix()
	}

	seconds, err := strconv.ParseInt(expiresIn, 10, 64)
	if err != nil || seconds <= 0 {
		seconds = defaultExpiresInSeconds
	}
	return u.now().Unix() + seconds
}

func (u *usecase) creds() *entity.OAuthCredentials {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.credentials
}
