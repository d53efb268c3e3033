package entity

// FirebaseTokens is the Firebase session obtained by exchanging a Google ID
// token through signInWithIdp.
type FirebaseTokens struct {
	IDToken      string  `json:"id_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    int64   `json:"expires_at"`
	Email        *string `json:"email,omitempty"`
	LocalID      string  `json:"local_id"`
	DisplayName  *string `json:"display_name,omitempty"`
}

// SlidesTokens is the Google OAuth session scoped to the Slides API,
// separate from the Firebase session.
type SlidesTokens struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token,omitempty"`
	ExpiresAt    *int64  `json:"expires_at,omitempty"`
}

// OAuthCredentials is the Google OAuth client pair fetched from the
// Firestore Configs/v-1 document during bootstrap.
type OAuthCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type UserInfo struct {
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	LocalID string  `json:"local_id"`
}

type Status struct {
	Authenticated    bool `json:"authenticated"`
	SlidesAuthorized bool `json:"slides_authorized"`
}

// IdpTokens is the raw signInWithIdp response surface.
type IdpTokens struct {
	IDToken      string
	RefreshToken string
	ExpiresIn    string
	LocalID      string
	Email        *string
	DisplayName  *string
}

// RefreshedTokens is the raw securetoken refresh response surface.
type RefreshedTokens struct {
	IDToken      string
	RefreshToken string
	ExpiresIn    string
}

// GoogleTokens is the raw oauth2 token endpoint response surface.
type GoogleTokens struct {
	AccessToken  string
	IDToken      *string
	RefreshToken *string
	ExpiresIn    *int64
	Scope        *string
}
