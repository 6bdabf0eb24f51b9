package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v57/github"
	"github.com/wesm/github-issue-link/internal/models"
)

// TokenProvider issues installation access tokens
type TokenProvider interface {
	GetAccessToken(ctx context.Context, installationID string) (*models.AccessToken, error)
}

// AppTokenProvider exchanges a GitHub App JWT for installation access tokens.
// It does not cache; every call performs one exchange.
type AppTokenProvider struct {
	client *github.Client
}

// NewAppTokenProvider creates a provider that signs its JWTs with signer
func NewAppTokenProvider(appID int64, signer ghinstallation.Signer, opts ...Option) (*AppTokenProvider, error) {
	o := buildOptions(opts)

	baseURL, err := parseBaseURL(o.baseURL)
	if err != nil {
		return nil, err
	}

	// AppsTransport mints a short-lived JWT per request and sets "Authorization: Bearer <jwt>"
	appsTransport, err := ghinstallation.NewAppsTransportWithOptions(o.transport, appID, ghinstallation.WithSigner(signer))
	if err != nil {
		return nil, fmt.Errorf("failed to create app transport: %w", err)
	}

	client := github.NewClient(&http.Client{Transport: appsTransport, Timeout: o.timeout})
	client.BaseURL = baseURL

	return &AppTokenProvider{client: client}, nil
}

// NewAppTokenProviderFromKey creates a provider signing RS256 JWTs with a PEM encoded private key
func NewAppTokenProviderFromKey(appID int64, privateKeyPEM []byte, opts ...Option) (*AppTokenProvider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewAppTokenProvider(appID, ghinstallation.NewRSASigner(jwt.SigningMethodRS256, key), opts...)
}

// GetAccessToken requests a new access token for the installation
func (p *AppTokenProvider) GetAccessToken(ctx context.Context, installationID string) (*models.AccessToken, error) {
	path := fmt.Sprintf("installations/%s/access_tokens", url.PathEscape(installationID))
	req, err := p.client.NewRequest(http.MethodPost, path, nil)
	if err != nil {
		return nil, &AuthenticationError{InstallationID: installationID, Err: err}
	}

	var token github.InstallationToken
	if _, err := p.client.Do(ctx, req, &token); err != nil {
		return nil, &AuthenticationError{InstallationID: installationID, Err: toAPIError(err)}
	}

	if token.GetToken() == "" {
		return nil, &AuthenticationError{InstallationID: installationID, Err: &MalformedResponseError{Field: "token"}}
	}
	if token.ExpiresAt == nil {
		return nil, &AuthenticationError{InstallationID: installationID, Err: &MalformedResponseError{Field: "expires_at"}}
	}

	return &models.AccessToken{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}
