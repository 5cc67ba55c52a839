package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	ran []string
}

func (f *fakeStore) Run(ctx context.Context, sql string, args ...any) error {
	f.ran = append(f.ran, sql)
	return nil
}
func (f *fakeStore) Query(ctx context.Context, sql string, args ...any) (Rows, error) { return nil, nil }
func (f *fakeStore) QueryOne(ctx context.Context, sql string, args ...any) Row         { return nil }
func (f *fakeStore) Close()                                                           {}

func TestApplySchemaRunsDDL(t *testing.T) {
	f := &fakeStore{}
	require.NoError(t, ApplySchema(context.Background(), f))
	require.Len(t, f.ran, 1)
	assert.Contains(t, f.ran[0], "CREATE TABLE IF NOT EXISTS swarm_peers")
	assert.Contains(t, f.ran[0], "CREATE TABLE IF NOT EXISTS transfer_history")
}
