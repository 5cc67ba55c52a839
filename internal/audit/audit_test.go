package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndQuery(t *testing.T) {
	log := New(10)
	log.Append("create", "cred-1", "0xAAA", "provider=aws")
	log.Append("use", "cred-1", "0xAAA", "ok")
	log.Append("revoke", "cred-2", "0xBBB", "status=revoked")

	all := log.Query("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "revoke", all[0].Action, "newest first")

	mine := log.Query("0xaaa", 0)
	require.Len(t, mine, 2)
}

func TestAppendEvictsOldestOverCapacity(t *testing.T) {
	log := New(3)
	for i := 0; i < 5; i++ {
		log.Append("use", fmt.Sprintf("cred-%d", i), "0xAAA", "")
	}

	all := log.Query("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "cred-4", all[0].Subject)
	assert.Equal(t, "cred-2", all[2].Subject)
}

func TestQueryLimit(t *testing.T) {
	log := New(10)
	for i := 0; i < 5; i++ {
		log.Append("use", fmt.Sprintf("cred-%d", i), "0xAAA", "")
	}

	limited := log.Query("", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "cred-4", limited[0].Subject)
	assert.Equal(t, "cred-3", limited[1].Subject)
}
