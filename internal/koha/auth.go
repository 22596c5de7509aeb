package koha

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/pkg/errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// FetchToken obtains a bearer token with the client-credentials grant. The
// token is fetched once per run and never refreshed.
func FetchToken(ctx context.Context, cfg *config.Config) (string, error) {
	log := logger.Get()

	creds := clientcredentials.Config{
		ClientID:     cfg.LibraryAPI.ClientID,
		ClientSecret: cfg.LibraryAPI.ClientSecret,
		TokenURL:     cfg.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClient(cfg))

	log.Debug().Str("token_url", creds.TokenURL).Msg("Requesting access token")

	token, err := creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrAuthenticationFailed, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: token response had no access_token", errors.ErrAuthenticationFailed)
	}

	log.Debug().Time("expires_at", token.Expiry).Msg("Access token acquired")

	return token.AccessToken, nil
}

func newHTTPClient(cfg *config.Config) *http.Client {
	client := &http.Client{Timeout: cfg.LibraryAPI.Timeout}
	if !cfg.LibraryAPI.VerifyTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}
