// Package redislease elects the coordinator writer
// with a lease stored in redis
package redislease

import (
	"context"
	"fmt"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/Lord-Y/ordinator/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// NewClient returns a redis client for a single node or a cluster
// and checks it can be reached
func NewClient(ctx context.Context, addresses []string, password string) (redis.UniversalClient, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: redis addresses are required", ordinator.ErrInvalidArgument)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addresses,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "Fail to ping redis")
	}
	return client, nil
}

// NewElector returns an elector from the provided options
func NewElector(options Options) (*Elector, error) {
	if options.Client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ordinator.ErrInvalidArgument)
	}
	if options.NodeID == "" {
		return nil, fmt.Errorf("%w: node id is required", ordinator.ErrInvalidArgument)
	}
	if options.Logger == nil {
		options.Logger = logger.NewComponentLogger("redislease")
	}
	if options.Key == "" {
		options.Key = defaultKey
	}
	if options.TTL <= 0 {
		options.TTL = defaultTTL
	}
	if options.RenewInterval <= 0 || options.RenewInterval >= options.TTL {
		options.RenewInterval = options.TTL / 3
	}
	if options.RetryInterval <= 0 {
		options.RetryInterval = defaultRetryInterval
	}

	return &Elector{
		logger:        options.Logger,
		client:        options.Client,
		key:           options.Key,
		nodeID:        options.NodeID,
		ttl:           options.TTL,
		renewInterval: options.RenewInterval,
		retryInterval: options.RetryInterval,
	}, nil
}

// Campaign blocks until the lease is acquired or ctx is done.
// The returned channel is closed when the lease could not be renewed
func (e *Elector) Campaign(ctx context.Context) (<-chan struct{}, error) {
	value := fmt.Sprintf("%s/%s", e.nodeID, uuid.NewString())
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		ok, err := e.client.SetNX(ctx, e.key, value, e.ttl).Result()
		if err != nil {
			e.logger.Warn().Err(err).Str("key", e.key).Msgf("Fail to acquire lease")
		}
		if ok {
			break
		}
		timer.Reset(e.retryInterval)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lost := make(chan struct{})
	done := make(chan struct{})

	e.mu.Lock()
	e.value = value
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	e.logger.Info().Str("key", e.key).Str("value", value).Msgf("Lease acquired")
	go e.renew(renewCtx, value, lost, done)
	return lost, nil
}

// renew extends the lease until renewCtx is cancelled or renewal fails
func (e *Elector) renew(ctx context.Context, value string, lost, done chan struct{}) {
	defer close(done)
	defer close(lost)

	ticker := time.NewTicker(e.renewInterval)
	defer ticker.Stop()
	lastRenew := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewCtx, cancel := context.WithTimeout(ctx, e.renewInterval)
		n, err := e.client.Eval(renewCtx, renewScript, []string{e.key}, value, e.ttl.Milliseconds()).Int()
		cancel()
		if ctx.Err() != nil {
			return
		}
		switch {
		case err == nil && n == 0:
			e.logger.Warn().Str("key", e.key).Msgf("Lease taken over by another replica")
			return
		case err != nil && time.Since(lastRenew) >= e.ttl:
			e.logger.Warn().Err(err).Str("key", e.key).Msgf("Lease expired while renewing")
			return
		case err != nil:
			e.logger.Warn().Err(err).Str("key", e.key).Msgf("Fail to renew lease")
		default:
			lastRenew = time.Now()
		}
	}
}

// Resign stops renewals and releases the lease if still held
func (e *Elector) Resign(ctx context.Context) error {
	e.mu.Lock()
	cancel, done, value := e.cancel, e.done, e.value
	e.cancel, e.done, e.value = nil, nil, ""
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	if err := e.client.Eval(ctx, releaseScript, []string{e.key}, value).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "Fail to release lease")
	}
	e.logger.Info().Str("key", e.key).Msgf("Lease released")
	return nil
}
