package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dws/control-plane/internal/apierr"
)

// Transport is the peer-to-peer RPC surface a SwarmCoordinator uses to
// reach other nodes (spec §6 "Peer HTTP surface"). httpTransport is the
// only implementation; it is kept as an interface so tests can script
// peer responses without a listener, the same shape as
// internal/cloudgateway's Driver/restDriver split.
type Transport interface {
	Health(ctx context.Context, peer Peer) error
	FetchContent(ctx context.Context, peer Peer, selfNodeID, selfRegion, cid string) (*ContentManifest, error)
	Replicate(ctx context.Context, peer Peer, selfNodeID, selfRegion string, req ReplicateRequest) error
}

// ReplicateRequest is the body of a replicate RPC (spec §6: "POST
// /v2/swarm/replicate {cid, requestingNode, priority}").
type ReplicateRequest struct {
	CID            string `json:"cid"`
	RequestingNode string `json:"requestingNode"`
	Priority       int    `json:"priority"`
}

// httpTransport issues real HTTP calls to peer endpoints. Endpoint may be
// empty for a peer, in which case the call is skipped and treated as a
// failure (an unreachable peer), matching cloudgateway's
// skip-on-empty-baseURL convention for the case where an endpoint is known
// but no live call should be attempted.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport() *httpTransport {
	return &httpTransport{client: &http.Client{}}
}

func (t *httpTransport) Health(ctx context.Context, peer Peer) error {
	if peer.Endpoint == "" {
		return apierr.New(apierr.Transient, "peer has no endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(peer.Endpoint, "/")+"/health", nil)
	if err != nil {
		return apierr.Wrap(apierr.Transient, "building health probe", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.Transient, "probing peer health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apierr.New(apierr.ProviderError, fmt.Sprintf("peer health returned status %d", resp.StatusCode))
	}
	return nil
}

func (t *httpTransport) FetchContent(ctx context.Context, peer Peer, selfNodeID, selfRegion, cid string) (*ContentManifest, error) {
	if peer.Endpoint == "" {
		return nil, apierr.New(apierr.Transient, "peer has no endpoint")
	}
	url := strings.TrimRight(peer.Endpoint, "/") + "/v2/swarm/content/" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.Transient, "building content request", err)
	}
	req.Header.Set("X-Node-ID", selfNodeID)
	req.Header.Set("X-Region", selfRegion)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.Transient, "requesting content from peer", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, apierr.New(apierr.ProviderError, fmt.Sprintf("peer content returned status %d", resp.StatusCode))
	}
	var manifest ContentManifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, apierr.Wrap(apierr.ProviderError, "decoding peer content response", err)
	}
	return &manifest, nil
}

func (t *httpTransport) Replicate(ctx context.Context, peer Peer, selfNodeID, selfRegion string, body ReplicateRequest) error {
	if peer.Endpoint == "" {
		return apierr.New(apierr.Transient, "peer has no endpoint")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return apierr.Wrap(apierr.Validation, "marshaling replicate request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(peer.Endpoint, "/")+"/v2/swarm/replicate", strings.NewReader(string(payload)))
	if err != nil {
		return apierr.Wrap(apierr.Transient, "building replicate request", err)
	}
	req.Header.Set("X-Node-ID", selfNodeID)
	req.Header.Set("X-Region", selfRegion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.Transient, "calling peer replicate", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apierr.New(apierr.ProviderError, fmt.Sprintf("peer replicate returned status %d", resp.StatusCode))
	}
	return nil
}
