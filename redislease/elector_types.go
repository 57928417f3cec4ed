package redislease

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// defaultKey is the redis key holding the lease
	defaultKey = "ordinator:coordinator:lease"

	// defaultTTL is the lease time to live
	defaultTTL = 10 * time.Second

	// defaultRetryInterval is the interval between two acquire attempts
	defaultRetryInterval = 500 * time.Millisecond
)

// renewScript extends the lease only when it's still ours
const renewScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  return 0
end
`

// releaseScript deletes the lease only when it's still ours
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
else
  return 0
end
`

// Client is the subset of redis commands used by the elector
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Options holds config of the elector
type Options struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Client is the redis client. It's required
	Client Client

	// Key is the redis key holding the lease.
	// Default to ordinator:coordinator:lease
	Key string

	// NodeID identifies the replica in the lease value. It's required
	NodeID string

	// TTL is the lease time to live.
	// Default to 10s
	TTL time.Duration

	// RenewInterval is the interval between two renewals.
	// Default to a third of TTL
	RenewInterval time.Duration

	// RetryInterval is the interval between two acquire attempts.
	// Default to 500ms
	RetryInterval time.Duration
}

// Elector is a lease based leader election backed by redis
type Elector struct {
	// mu protects cancel and done
	mu sync.Mutex

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// client is the redis client
	client Client

	// key is the redis key holding the lease
	key string

	// value is unique per campaign so a replica never renews
	// a lease acquired by a previous campaign
	value string

	// nodeID identifies the replica
	nodeID string

	// ttl is the lease time to live
	ttl time.Duration

	// renewInterval is the interval between two renewals
	renewInterval time.Duration

	// retryInterval is the interval between two acquire attempts
	retryInterval time.Duration

	// cancel stops the renew loop
	cancel context.CancelFunc

	// done is closed when the renew loop exited
	done chan struct{}
}
