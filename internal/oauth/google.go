package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gotrak-digital/gotrak/internal/shared"
)

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Profile is the provider-issued identity assertion after a completed
// authorization code exchange.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Client drives the Google authorization code flow with PKCE.
type Client struct {
	conf        *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
}

// Option customises a Client, used by tests to point at a fake provider.
type Option func(*Client)

// WithEndpoint overrides the provider authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Client) {
		c.conf.Endpoint = endpoint
	}
}

// WithUserinfoURL overrides the userinfo endpoint.
func WithUserinfoURL(url string) Option {
	return func(c *Client) {
		c.userinfoURL = url
	}
}

// NewGoogleClient constructs a Client for Google with the configured
// credentials and callback URL.
func NewGoogleClient(clientID, clientSecret, redirectURL string, opts ...Option) *Client {
	c := &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateState returns a random state parameter for CSRF protection of the
// authorization redirect.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateVerifier returns a PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the provider authorization URL carrying the state and
// the S256 challenge for the given verifier.
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// FetchProfile exchanges the authorization code and fetches the userinfo
// document. Failures and malformed assertions surface as
// shared.ErrFederatedLookup so callers treat them uniformly.
func (c *Client) FetchProfile(ctx context.Context, code, verifier string) (*Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", shared.ErrFederatedLookup, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", shared.ErrFederatedLookup, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch userinfo: %v", shared.ErrFederatedLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: userinfo status %d: %s", shared.ErrFederatedLookup, resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", shared.ErrFederatedLookup, err)
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo missing sub claim", shared.ErrFederatedLookup)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing email", shared.ErrFederatedLookup)
	}
	return &profile, nil
}
