package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/ytq/internal/shared"
	"golang.org/x/oauth2"
)

// expiryDelta mirrors the early-expiry window [oauth2.Token] applies so a record is never reported valid while the
// library would refresh it.
const expiryDelta = 10 * time.Second

// CredentialRecord is the persisted token.json for a channel.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
}

// RecordFromToken builds a record from a token returned by an exchange or refresh.
func RecordFromToken(tok *oauth2.Token, scopes []string) *CredentialRecord {
	return &CredentialRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
		Scopes:       append([]string(nil), scopes...),
	}
}

// Token converts the record for use with an [oauth2.Config].
func (r *CredentialRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry,
	}
}

// Expired reports whether the access token is unusable at now. A zero expiry never expires.
func (r *CredentialRecord) Expired(now time.Time) bool {
	if r.Expiry.IsZero() {
		return false
	}
	return now.Add(expiryDelta).After(r.Expiry)
}

// Refreshable reports whether a refresh token is available.
func (r *CredentialRecord) Refreshable() bool {
	return r.RefreshToken != ""
}

// HasScopes reports whether every scope in required was granted.
func (r *CredentialRecord) HasScopes(required ...string) bool {
	granted := make(map[string]struct{}, len(r.Scopes))
	for _, s := range r.Scopes {
		granted[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// Validate checks the required fields.
func (r *CredentialRecord) Validate(required ...string) error {
	if r.AccessToken == "" {
		return fmt.Errorf("%w: missing access_token", shared.ErrCredentialInvalid)
	}
	if !r.HasScopes(required...) {
		return fmt.Errorf("%w: granted scopes %v lack %v", shared.ErrCredentialInvalid, r.Scopes, required)
	}
	return nil
}

// ClientSecret is the application credential block from client_secret.json.
type ClientSecret struct {
	Kind         string   `json:"-"` // "installed" or "web"
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}
