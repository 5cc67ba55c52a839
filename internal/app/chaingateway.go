package app

import (
	"context"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/chaingateway"
)

// noopChainGateway stands in for the on-chain contract + RPC client, which
// is explicitly out of scope (chaingateway package doc). Every call fails
// so chaingateway.BestEffort exercises its own retry-then-journal path
// rather than the core silently assuming success.
type noopChainGateway struct{}

func (noopChainGateway) PublishAttestation(ctx context.Context, att chaingateway.Attestation) error {
	return apierr.New(apierr.Transient, "on-chain RPC client is not configured")
}

func (noopChainGateway) LookupContentLocations(ctx context.Context, cid string) ([]chaingateway.ContentLocation, error) {
	return nil, apierr.New(apierr.Transient, "on-chain RPC client is not configured")
}
