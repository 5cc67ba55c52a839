package cloudgateway

import (
	"context"
	"time"

	"github.com/dws/control-plane/internal/apierr"
)

// Gateway dispatches to a Driver per Provider.
type Gateway struct {
	drivers map[Provider]Driver
}

// New creates a Gateway with the given provider drivers registered.
func New(drivers map[Provider]Driver) *Gateway {
	return &Gateway{drivers: drivers}
}

func (g *Gateway) driverFor(p Provider) (Driver, error) {
	d, ok := g.drivers[p]
	if !ok {
		return nil, apierr.New(apierr.Validation, "unsupported provider: "+string(p))
	}
	return d, nil
}

// Create creates an instance via the provider's driver.
func (g *Gateway) Create(ctx context.Context, creds Credentials, req CreateRequest) (Instance, error) {
	d, err := g.driverFor(req.Provider)
	if err != nil {
		return Instance{}, err
	}
	return d.Create(ctx, creds, req)
}

// Get returns an instance by id, or nil if not found.
func (g *Gateway) Get(ctx context.Context, provider Provider, creds Credentials, id string) (*Instance, error) {
	d, err := g.driverFor(provider)
	if err != nil {
		return nil, err
	}
	return d.Get(ctx, creds, id)
}

// Delete deletes an instance, returning whether it existed.
func (g *Gateway) Delete(ctx context.Context, provider Provider, creds Credentials, id string) (bool, error) {
	d, err := g.driverFor(provider)
	if err != nil {
		return false, err
	}
	return d.Delete(ctx, creds, id)
}

// List returns all instances known to the provider's driver.
func (g *Gateway) List(ctx context.Context, provider Provider, creds Credentials) ([]Instance, error) {
	d, err := g.driverFor(provider)
	if err != nil {
		return nil, err
	}
	return d.List(ctx, creds)
}

// WaitRunning polls every 5s until the instance reaches StatusRunning,
// fails on StatusTerminated, or times out (spec §4.B).
func (g *Gateway) WaitRunning(ctx context.Context, provider Provider, creds Credentials, id string, timeout time.Duration) (Instance, error) {
	d, err := g.driverFor(provider)
	if err != nil {
		return Instance{}, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		inst, err := d.Get(ctx, creds, id)
		if err != nil {
			return Instance{}, err
		}
		if inst != nil {
			switch inst.Status {
			case StatusRunning:
				return *inst, nil
			case StatusTerminated:
				return Instance{}, apierr.New(apierr.ProviderError, "instance terminated while waiting for running state")
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Instance{}, apierr.New(apierr.Timeout, "timed out waiting for instance to reach running state")
		}

		select {
		case <-ctx.Done():
			return Instance{}, apierr.Wrap(apierr.Timeout, "context cancelled while waiting for instance", ctx.Err())
		case <-time.After(remaining):
			return Instance{}, apierr.New(apierr.Timeout, "timed out waiting for instance to reach running state")
		case <-ticker.C:
		}
	}
}
