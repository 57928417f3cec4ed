package redislease

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ordinator.Elector = (*Elector)(nil)

// fakeRedis keeps leases in memory and evaluates scripts by their kind
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	fail   bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return redis.NewBoolResult(false, assert.AnError)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return redis.NewCmdResult(nil, assert.AnError)
	}
	if f.values[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if strings.Contains(script, "DEL") {
		delete(f.values, keys[0])
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeRedis) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok
}

func testElector(t *testing.T, client Client, nodeID string) *Elector {
	t.Helper()
	elector, err := NewElector(Options{
		Client:        client,
		NodeID:        nodeID,
		TTL:           300 * time.Millisecond,
		RenewInterval: 20 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	})
	require.Nil(t, err)
	return elector
}

func TestNewElector(t *testing.T) {
	assert := assert.New(t)

	_, err := NewElector(Options{NodeID: "node-1"})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	_, err = NewElector(Options{Client: newFakeRedis()})
	assert.ErrorIs(err, ordinator.ErrInvalidArgument)

	elector, err := NewElector(Options{Client: newFakeRedis(), NodeID: "node-1", RenewInterval: time.Hour})
	assert.Nil(err)
	assert.Equal(defaultKey, elector.key)
	assert.Equal(defaultTTL, elector.ttl)
	assert.Equal(defaultTTL/3, elector.renewInterval)
	assert.Equal(defaultRetryInterval, elector.retryInterval)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	assert.ErrorIs(t, err, ordinator.ErrInvalidArgument)
}

func TestElector_campaignAndResign(t *testing.T) {
	assert := assert.New(t)
	client := newFakeRedis()
	first := testElector(t, client, "node-1")
	second := testElector(t, client, "node-2")

	lost, err := first.Campaign(context.Background())
	require.Nil(t, err)
	value, ok := client.get(defaultKey)
	assert.True(ok)
	assert.True(strings.HasPrefix(value, "node-1/"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	_, err = second.Campaign(ctx)
	cancel()
	assert.ErrorIs(err, context.DeadlineExceeded)

	select {
	case <-lost:
		assert.Fail("lease must be kept while renewals succeed")
	case <-time.After(100 * time.Millisecond):
	}

	assert.Nil(first.Resign(context.Background()))
	_, ok = client.get(defaultKey)
	assert.False(ok)
	_, open := <-lost
	assert.False(open)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = second.Campaign(ctx)
	assert.Nil(err)
	assert.Nil(second.Resign(context.Background()))
	assert.Nil(second.Resign(context.Background()))
}

func TestElector_takeover(t *testing.T) {
	client := newFakeRedis()
	elector := testElector(t, client, "node-1")

	lost, err := elector.Campaign(context.Background())
	require.Nil(t, err)

	client.set(defaultKey, "node-2/other")
	select {
	case <-lost:
	case <-time.After(time.Second):
		require.FailNow(t, "leadership loss not reported")
	}

	assert.Nil(t, elector.Resign(context.Background()))
	value, _ := client.get(defaultKey)
	assert.Equal(t, "node-2/other", value)
}

func TestElector_renewFailure(t *testing.T) {
	client := newFakeRedis()
	elector := testElector(t, client, "node-1")

	lost, err := elector.Campaign(context.Background())
	require.Nil(t, err)

	client.mu.Lock()
	client.fail = true
	client.mu.Unlock()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "lease expiry not reported")
	}
	assert.NotNil(t, elector.Resign(context.Background()))
}
