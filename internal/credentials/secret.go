package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// Scopes are requested on every authorization and required of every persisted record: upload plus a read scope for
// channel and video listings.
var Scopes = []string{
	youtube.YoutubeUploadScope,
	youtube.YoutubeReadonlyScope,
}

// PlaceholderSecret is written for channels whose secret has not been picked yet.
var PlaceholderSecret = []byte("{}")

var secretKinds = []string{"installed", "web"}

// ParseSecret validates client_secret.json content.
//
// Returns [shared.ErrSecretCorrupt] for unparsable JSON, [shared.ErrSecretEmpty] for the "{}" placeholder and
// [shared.ErrSecretMalformed] when no usable installed/web block is present.
func ParseSecret(data []byte) (*models.ClientSecret, error) {
	var blocks map[string]json.RawMessage
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSecretCorrupt, err)
	}
	if len(blocks) == 0 {
		return nil, shared.ErrSecretEmpty
	}

	for _, kind := range secretKinds {
		raw, ok := blocks[kind]
		if !ok {
			continue
		}

		var secret models.ClientSecret
		if err := json.Unmarshal(raw, &secret); err != nil {
			return nil, fmt.Errorf("%w: %s block: %v", shared.ErrSecretCorrupt, kind, err)
		}
		if secret.ClientID == "" || secret.ClientSecret == "" {
			return nil, fmt.Errorf("%w: %s block lacks client_id or client_secret", shared.ErrSecretMalformed, kind)
		}

		secret.Kind = kind
		if secret.AuthURI == "" {
			secret.AuthURI = google.Endpoint.AuthURL
		}
		if secret.TokenURI == "" {
			secret.TokenURI = google.Endpoint.TokenURL
		}
		return &secret, nil
	}

	return nil, shared.ErrSecretMalformed
}

// OAuthConfig builds the [oauth2.Config] for secret with the required [Scopes].
func OAuthConfig(secret *models.ClientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       append([]string(nil), Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:  secret.AuthURI,
			TokenURL: secret.TokenURI,
		},
	}
}
