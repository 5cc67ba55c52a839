package chaingateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyGateway struct {
	failUntil int
	calls     int
}

func (g *flakyGateway) PublishAttestation(ctx context.Context, att Attestation) error {
	g.calls++
	if g.calls < g.failUntil {
		return errors.New("rpc unavailable")
	}
	return nil
}

func (g *flakyGateway) LookupContentLocations(ctx context.Context, cid string) ([]ContentLocation, error) {
	if cid == "missing" {
		return nil, errors.New("not found on chain")
	}
	return []ContentLocation{{CID: cid, NodeID: "peer-1"}}, nil
}

type recordingJournal struct {
	recorded []Attestation
}

func (j *recordingJournal) Record(ctx context.Context, att Attestation, cause error) error {
	j.recorded = append(j.recorded, att)
	return nil
}

func TestPublishAttestationRetriesThenSucceeds(t *testing.T) {
	gw := &flakyGateway{failUntil: 3}
	journal := &recordingJournal{}
	b := NewBestEffort(gw, journal, nil)
	b.baseDelay = time.Millisecond

	b.PublishAttestation(context.Background(), Attestation{ProviderID: "p1"})
	assert.Equal(t, 3, gw.calls)
	assert.Empty(t, journal.recorded)
}

func TestPublishAttestationJournalsOnPersistentFailure(t *testing.T) {
	gw := &flakyGateway{failUntil: 100}
	journal := &recordingJournal{}
	b := NewBestEffort(gw, journal, nil)
	b.baseDelay = time.Millisecond

	b.PublishAttestation(context.Background(), Attestation{ProviderID: "p2"})
	require.Len(t, journal.recorded, 1)
	assert.Equal(t, "p2", journal.recorded[0].ProviderID)
}

func TestLookupContentLocationsFallsBackOnError(t *testing.T) {
	gw := &flakyGateway{}
	b := NewBestEffort(gw, nil, nil)

	locs := b.LookupContentLocations(context.Background(), "missing")
	assert.Nil(t, locs)

	locs = b.LookupContentLocations(context.Background(), "cid-1")
	require.Len(t, locs, 1)
	assert.Equal(t, "peer-1", locs[0].NodeID)
}
