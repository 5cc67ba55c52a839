package cloudgateway

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/dws/control-plane/internal/apierr"
)

// oauthDriver wraps a restDriver for providers whose control plane is
// reached via an OAuth2 client-credentials exchange (gcp, azure). The
// token source authenticates the (out-of-scope) provider REST calls; this
// driver otherwise behaves like restDriver. tokenURL is fixed per provider
// at construction time; client id/secret come from the decrypted
// credential on each call.
type oauthDriver struct {
	rest     *restDriver
	tokenURL string
}

func newOAuthDriver(provider Provider, tokenURL, baseURL string) *oauthDriver {
	return &oauthDriver{
		rest:     newRESTDriver(provider, baseURL),
		tokenURL: tokenURL,
	}
}

func (d *oauthDriver) exchange(ctx context.Context, creds Credentials) (string, error) {
	if d.tokenURL == "" {
		return "", nil
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.APIKey,
		ClientSecret: creds.APISecret,
		TokenURL:     d.tokenURL,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return "", apierr.Wrap(apierr.Validation, "exchanging OAuth2 client credentials", err)
	}
	return token.AccessToken, nil
}

func (d *oauthDriver) Create(ctx context.Context, creds Credentials, req CreateRequest) (Instance, error) {
	bearer, err := d.exchange(ctx, creds)
	if err != nil {
		return Instance{}, err
	}
	return d.rest.Create(ctx, Credentials{APIKey: bearer}, req)
}

func (d *oauthDriver) Get(ctx context.Context, creds Credentials, id string) (*Instance, error) {
	return d.rest.Get(ctx, creds, id)
}

func (d *oauthDriver) Delete(ctx context.Context, creds Credentials, id string) (bool, error) {
	return d.rest.Delete(ctx, creds, id)
}

func (d *oauthDriver) List(ctx context.Context, creds Credentials) ([]Instance, error) {
	return d.rest.List(ctx, creds)
}
