package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/dws/control-plane/internal/apierr"
)

const verifyTimeout = 15 * time.Second

var awsKeyPattern = regexp.MustCompile(`^(AKIA|ASIA)[A-Z0-9]{16}$`)

// Endpoints is the bearer-auth GET account endpoint verified against
// for providers whose control API exposes one directly. Empty in tests/dev;
// when empty, verification for that provider is skipped (treated as
// reachable) rather than making an outbound call.
type Endpoints struct {
	Hetzner      string
	DigitalOcean string
	Vultr        string
	Linode       string
}

type gcpServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// verifier runs the provider-specific verification rule in spec §4.A.
type verifier struct {
	endpoints  Endpoints
	httpClient *http.Client
}

func newVerifier(ep Endpoints) *verifier {
	return &verifier{endpoints: ep, httpClient: &http.Client{Timeout: verifyTimeout}}
}

func (v *verifier) verify(ctx context.Context, req StoreRequest) error {
	if req.SkipVerification {
		return nil
	}
	switch req.Provider {
	case Hetzner:
		return v.verifyBearerAccount(ctx, v.endpoints.Hetzner, req.APIKey)
	case DigitalOcean:
		return v.verifyBearerAccount(ctx, v.endpoints.DigitalOcean, req.APIKey)
	case Vultr:
		return v.verifyBearerAccount(ctx, v.endpoints.Vultr, req.APIKey)
	case Linode:
		return v.verifyBearerAccount(ctx, v.endpoints.Linode, req.APIKey)
	case AWS:
		return verifyAWS(req)
	case GCP:
		return verifyGCP(req)
	case Azure:
		return verifyMinLength(req.APIKey, req.APISecret)
	case OVH:
		return verifyMinLength(req.APIKey, req.APISecret)
	default:
		return apierr.New(apierr.Validation, fmt.Sprintf("unsupported provider: %s", req.Provider))
	}
}

func (v *verifier) verifyBearerAccount(ctx context.Context, endpoint, bearer string) error {
	if endpoint == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apierr.Wrap(apierr.Validation, "building verification request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return apierr.Wrap(apierr.ProviderError, "calling provider account endpoint", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apierr.New(apierr.Validation, "provider rejected credential")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apierr.New(apierr.ProviderError, fmt.Sprintf("provider account endpoint returned status %d", resp.StatusCode))
	default:
		return nil
	}
}

func verifyAWS(req StoreRequest) error {
	if !awsKeyPattern.MatchString(req.APIKey) {
		return apierr.New(apierr.Validation, "aws access key does not match expected format")
	}
	if len(req.APISecret) != 40 {
		return apierr.New(apierr.Validation, "aws secret access key must be exactly 40 characters")
	}
	return nil
}

func verifyGCP(req StoreRequest) error {
	var sa gcpServiceAccount
	if err := json.Unmarshal([]byte(req.APIKey), &sa); err != nil {
		return apierr.Wrap(apierr.Validation, "gcp credential must be a service account JSON document", err)
	}
	if sa.Type != "service_account" {
		return apierr.New(apierr.Validation, `gcp credential JSON must have type "service_account"`)
	}
	if sa.ProjectID == "" || sa.PrivateKeyID == "" || sa.PrivateKey == "" || sa.ClientEmail == "" {
		return apierr.New(apierr.Validation, "gcp credential JSON missing required service account fields")
	}
	return nil
}

func verifyMinLength(key, secret string) error {
	if len(key) < 10 || len(secret) < 10 {
		return apierr.New(apierr.Validation, "key and secret must each be at least 10 characters")
	}
	return nil
}
