// Package iam exchanges an IBM Cloud API key for a bearer access token.
package iam

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// DefaultTokenURL is the IBM Cloud IAM identity token endpoint.
	DefaultTokenURL = "https://iam.cloud.ibm.com/identity/token"

	// GrantTypeAPIKey is the grant requested when trading an API key for a token.
	GrantTypeAPIKey = "urn:ibm:params:oauth:grant-type:apikey"
)

// Token is the subset of the IAM token response the tool looks at.
// Only AccessToken is required; the rest is informational.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Expiration  int64
}

// Authenticator performs the API key exchange.
type Authenticator struct {
	client   *client.Client
	tokenURL string
	logger   zerolog.Logger
}

// NewAuthenticator creates an authenticator posting to tokenURL.
// An empty tokenURL selects DefaultTokenURL.
func NewAuthenticator(c *client.Client, tokenURL string) *Authenticator {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &Authenticator{
		client:   c,
		tokenURL: tokenURL,
		logger:   logging.NewLogger("iam"),
	}
}

// GetToken exchanges apiKey for an access token with a single POST.
// The key is not validated locally; IAM rejects empty or unknown keys.
func (a *Authenticator) GetToken(ctx context.Context, apiKey string) (string, error) {
	token, err := a.Exchange(ctx, apiKey)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Exchange is GetToken returning the whole parsed response.
func (a *Authenticator) Exchange(ctx context.Context, apiKey string) (*Token, error) {
	form := url.Values{
		"grant_type": {GrantTypeAPIKey},
		"apikey":     {apiKey},
	}

	resp, err := a.client.PostForm(ctx, a.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &client.APIError{
			Class: client.ErrorClassTransport,
			URL:   a.tokenURL,
			Err:   fmt.Errorf("read token response: %w", err),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, &client.APIError{
			Class:      client.ErrorClassMalformedJSON,
			URL:        a.tokenURL,
			StatusCode: resp.StatusCode,
			Err:        client.ErrMalformedJSON,
		}
	}

	parsed := gjson.ParseBytes(body)
	accessToken := parsed.Get("access_token")
	if accessToken.Type != gjson.String || accessToken.String() == "" {
		a.logger.Error().
			Int("status", resp.StatusCode).
			Str("error_code", parsed.Get("errorCode").String()).
			Msg("Token response has no access_token")
		return nil, &client.APIError{
			Class:      client.ErrorClassAuthResponse,
			URL:        a.tokenURL,
			StatusCode: resp.StatusCode,
			Message:    parsed.Get("errorMessage").String(),
			Err:        client.ErrMissingAccessToken,
		}
	}

	token := &Token{
		AccessToken: accessToken.String(),
		TokenType:   parsed.Get("token_type").String(),
		ExpiresIn:   parsed.Get("expires_in").Int(),
		Expiration:  parsed.Get("expiration").Int(),
	}

	a.logger.Info().
		Str("token_type", token.TokenType).
		Int64("expires_in", token.ExpiresIn).
		Msg("Obtained access token")

	return token, nil
}
