package authgw

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws/control-plane/internal/apierr"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	g := New(nil, Options{})
	_, err := g.Authenticate("")
	require.Error(t, err)
	assert.Equal(t, apierr.Unauthenticated, apierr.KindOf(err))
}

func TestAuthenticateRejectsMalformedAddress(t *testing.T) {
	g := New(nil, Options{})
	_, err := g.Authenticate("not-an-address")
	require.Error(t, err)
}

func TestAuthenticateAcceptsWellFormedAddress(t *testing.T) {
	g := New(nil, Options{})
	p, err := g.Authenticate("0x1234567890123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "0x1234567890123456789012345678901234567890", p.Address)
}

func TestAuthorizeRejectsWrongOwner(t *testing.T) {
	g := New(nil, Options{})
	p := Principal{Address: "0xaaaa"}
	err := g.Authorize(p, "0xbbbb")
	require.Error(t, err)
}

func TestAuthorizeAcceptsCaseInsensitiveMatch(t *testing.T) {
	g := New(nil, Options{})
	p := Principal{Address: "0xAAAA"}
	require.NoError(t, g.Authorize(p, "0xaaaa"))
}

func TestCheckRateLimitAllowsWithoutRedis(t *testing.T) {
	g := New(nil, Options{})
	require.NoError(t, g.CheckRateLimit(context.Background(), Principal{Address: "0xaaaa"}))
}

func TestCheckRateLimitBlocksAfterThreshold(t *testing.T) {
	rdb := newTestRedis(t)
	g := New(rdb, Options{MaxRequestsPerWindow: 3, Window: time.Minute})
	p := Principal{Address: "0xaaaa"}

	for i := 0; i < 3; i++ {
		require.NoError(t, g.CheckRateLimit(context.Background(), p))
	}
	err := g.CheckRateLimit(context.Background(), p)
	require.Error(t, err)
}

func TestCheckRateLimitIsolatesPerPrincipal(t *testing.T) {
	rdb := newTestRedis(t)
	g := New(rdb, Options{MaxRequestsPerWindow: 1, Window: time.Minute})

	require.NoError(t, g.CheckRateLimit(context.Background(), Principal{Address: "0xaaaa"}))
	require.NoError(t, g.CheckRateLimit(context.Background(), Principal{Address: "0xbbbb"}))
	require.Error(t, g.CheckRateLimit(context.Background(), Principal{Address: "0xaaaa"}))
}
