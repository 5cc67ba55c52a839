package cloudgateway

// Endpoints configures the (optional) live base URL / token URL per
// provider. Empty values keep the corresponding driver in local/dev/test
// mode (no outbound HTTP calls; see rest_driver.go).
type Endpoints struct {
	AWSBaseURL          string
	GCPBaseURL          string
	GCPTokenURL         string
	AzureBaseURL        string
	AzureTokenURL       string
	HetznerBaseURL      string
	OVHBaseURL          string
	DigitalOceanBaseURL string
	VultrBaseURL        string
	LinodeBaseURL       string
}

// NewDefaultGateway builds a Gateway with one driver registered per
// supported Provider (spec §3 Credential.provider enum).
func NewDefaultGateway(ep Endpoints) *Gateway {
	return New(map[Provider]Driver{
		AWS:          newAWSDriver(ep.AWSBaseURL),
		GCP:          newOAuthDriver(GCP, ep.GCPTokenURL, ep.GCPBaseURL),
		Azure:        newOAuthDriver(Azure, ep.AzureTokenURL, ep.AzureBaseURL),
		Hetzner:      newRESTDriver(Hetzner, ep.HetznerBaseURL),
		OVH:          newRESTDriver(OVH, ep.OVHBaseURL),
		DigitalOcean: newRESTDriver(DigitalOcean, ep.DigitalOceanBaseURL),
		Vultr:        newRESTDriver(Vultr, ep.VultrBaseURL),
		Linode:       newRESTDriver(Linode, ep.LinodeBaseURL),
	})
}
