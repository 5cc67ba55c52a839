// Package authgw implements the §4.F AuthGateway: bearer-address
// authentication, owner-equality authorization, and per-principal rate
// limiting.
package authgw

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dws/control-plane/internal/apierr"
)

// addressPattern matches a well-formed 160-bit (20-byte) hex address,
// 0x-prefixed (spec §4.F: "well-formed 160-bit address").
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Principal is the authenticated identity extracted from a request's
// bearer-like address header.
type Principal struct {
	Address string
}

// Options configures rate limiting (spec §6 ambient defaults are silent
// here; these follow the teacher's login-attempt limiter shape).
type Options struct {
	MaxRequestsPerWindow int
	Window               time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRequestsPerWindow <= 0 {
		o.MaxRequestsPerWindow = 100
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	return o
}

// Gateway authenticates bearer addresses, authorizes owner-scoped
// operations, and enforces per-principal rate limits.
type Gateway struct {
	redis *redis.Client
	opts  Options
}

// New constructs a Gateway. rdb may be nil, in which case CheckRateLimit
// always allows (local/dev/test — mirrors cloudgateway's
// skip-when-unconfigured convention).
func New(rdb *redis.Client, opts Options) *Gateway {
	return &Gateway{redis: rdb, opts: opts.withDefaults()}
}

// Authenticate extracts and validates the bearer address header. A
// missing or malformed header is Unauthenticated (spec §4.F).
func (g *Gateway) Authenticate(header string) (Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Principal{}, apierr.New(apierr.Unauthenticated, "missing bearer address header")
	}
	if !addressPattern.MatchString(header) {
		return Principal{}, apierr.New(apierr.Unauthenticated, "malformed bearer address header")
	}
	return Principal{Address: strings.ToLower(header)}, nil
}

// Authorize checks the authenticated principal against a resource's owner
// address (case-insensitive, per the vault/confdb ownership convention).
// A mismatch is Unauthorized (spec §4.F).
func (g *Gateway) Authorize(principal Principal, owner string) error {
	if !strings.EqualFold(principal.Address, owner) {
		return apierr.New(apierr.Unauthorized, "principal does not own this resource")
	}
	return nil
}

// CheckRateLimit enforces a per-principal request budget using Redis
// INCR+EXPIRE, the same technique as the teacher's login rate limiter
// retargeted from per-IP login attempts to per-principal request volume.
// A violation is reported as apierr.Conflict: the fixed error taxonomy
// (spec §7) has no RateLimited kind, and Conflict's own description
// ("quota exceeded, wrong lifecycle state") is the closest fit for "too
// many requests" — see DESIGN.md.
func (g *Gateway) CheckRateLimit(ctx context.Context, principal Principal) error {
	if g.redis == nil {
		return nil
	}
	key := "authgw:ratelimit:" + principal.Address

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return apierr.Wrap(apierr.Transient, "checking rate limit", err)
	}
	if count == 1 {
		if err := g.redis.Expire(ctx, key, g.opts.Window).Err(); err != nil {
			return apierr.Wrap(apierr.Transient, "setting rate limit window", err)
		}
	}
	if count > int64(g.opts.MaxRequestsPerWindow) {
		return apierr.New(apierr.Conflict, "rate limit exceeded")
	}
	return nil
}
