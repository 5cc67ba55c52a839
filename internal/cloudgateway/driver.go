package cloudgateway

import "context"

// Driver is implemented once per Provider. Drivers ignore unknown
// Extensions fields (spec §4.B). Credentials are passed per-call (never
// retained) since each caller may act on behalf of a different credential
// owner against the same provider.
type Driver interface {
	Create(ctx context.Context, creds Credentials, req CreateRequest) (Instance, error)
	Get(ctx context.Context, creds Credentials, id string) (*Instance, error)
	Delete(ctx context.Context, creds Credentials, id string) (bool, error)
	List(ctx context.Context, creds Credentials) ([]Instance, error)
}
