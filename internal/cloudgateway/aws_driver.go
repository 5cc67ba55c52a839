package cloudgateway

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/dws/control-plane/internal/apierr"
)

// awsDriver wraps a restDriver with AWS credential validation via
// aws-sdk-go-v2. Live EC2 calls are out of this control plane's scope
// (spec §1: "cloud provider REST APIs ... used as libraries"); the SDK is
// used here only to validate and shape the AWS leg of the uniform Instance
// projection, per DESIGN.md.
type awsDriver struct {
	rest *restDriver
}

// newAWSDriver builds an AWS driver. baseURL may be empty (local/dev/test).
func newAWSDriver(baseURL string) *awsDriver {
	return &awsDriver{rest: newRESTDriver(AWS, baseURL)}
}

func (d *awsDriver) validate(ctx context.Context, creds Credentials) error {
	cp := awscreds.NewStaticCredentialsProvider(creds.APIKey, creds.APISecret, "")
	if _, err := cp.Retrieve(ctx); err != nil {
		return apierr.Wrap(apierr.Validation, "invalid AWS credentials", err)
	}
	return nil
}

func (d *awsDriver) Create(ctx context.Context, creds Credentials, req CreateRequest) (Instance, error) {
	if err := d.validate(ctx, creds); err != nil {
		return Instance{}, err
	}
	if req.Region == "" {
		if region, err := d.defaultRegion(ctx, creds); err == nil && region != "" {
			req.Region = region
		}
	}
	return d.rest.Create(ctx, creds, req)
}

// defaultRegion resolves the ambient AWS region (env/profile/IMDS) via the
// SDK's standard config chain, for callers that omit Region from
// CreateRequest. Failure is non-fatal here: Create falls back to whatever
// the REST endpoint itself defaults to.
func (d *awsDriver) defaultRegion(ctx context.Context, creds Credentials) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(creds.APIKey, creds.APISecret, "")),
	)
	if err != nil {
		return "", err
	}
	return cfg.Region, nil
}

func (d *awsDriver) Get(ctx context.Context, creds Credentials, id string) (*Instance, error) {
	return d.rest.Get(ctx, creds, id)
}

func (d *awsDriver) Delete(ctx context.Context, creds Credentials, id string) (bool, error) {
	return d.rest.Delete(ctx, creds, id)
}

func (d *awsDriver) List(ctx context.Context, creds Credentials) ([]Instance, error) {
	return d.rest.List(ctx, creds)
}
