package ordinator

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

// bufnet routes in memory connections to the listener of each server
type bufnet struct {
	mu        sync.Mutex
	listeners map[string]*bufconn.Listener
}

func newBufnet() *bufnet {
	return &bufnet{listeners: make(map[string]*bufconn.Listener)}
}

// serve starts the server on a new in memory listener named name
func (b *bufnet) serve(t *testing.T, name string, options ServerOptions) *Server {
	t.Helper()
	options.Logger = logger.NewComponentLogger("test")
	options.ForceStopTimeout = time.Second
	server, err := NewServer(options)
	require.Nil(t, err)

	listener := bufconn.Listen(1 << 20)
	b.mu.Lock()
	b.listeners[name] = listener
	b.mu.Unlock()

	go func() {
		_ = server.Serve(listener)
	}()
	require.Eventually(t, func() bool {
		return server.Addr() != nil
	}, 5*time.Second, 5*time.Millisecond)
	return server
}

func (b *bufnet) dialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, address string) (net.Conn, error) {
		b.mu.Lock()
		listener := b.listeners[address]
		b.mu.Unlock()
		return listener.DialContext(ctx)
	})
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(ServerOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestServer_coordinator(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	network := newBufnet()

	c, _, stop := startCoordinator(t, NewInMemoryStorage(), nil)
	defer func() {
		assert.Nil(stop())
	}()
	server := network.serve(t, "bufnet", ServerOptions{Coordinator: c})
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithTransportCredentials(insecure.NewCredentials()), network.dialOption())
	require.Nil(t, err)
	defer func() {
		assert.Nil(conn.Close())
	}()
	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	assert.Nil(err)
	assert.Equal(healthpb.HealthCheckResponse_SERVING, health.GetStatus())

	client, err := NewClient(ClientOptions{
		Addresses:     []string{"passthrough:///bufnet"},
		MemberID:      "worker",
		MemberAddress: "worker:50051",
		DialOptions:   []grpc.DialOption{network.dialOption()},
	})
	require.Nil(t, err)
	defer func() {
		assert.Nil(client.Close())
	}()

	member, err := client.Register(ctx)
	assert.Nil(err)
	assert.Equal("worker", member.ID)
	assert.Equal(Joining, member.Status)
	assert.NotEmpty(client.Incarnation())
	assert.Equal(member.Incarnation, client.Incarnation())

	member, err = client.Heartbeat(ctx)
	assert.Nil(err)
	assert.Equal(Active, member.Status)
	assert.Nil(c.tracker.flush(ctx))

	entry, err := client.GetAssignment(ctx, "unit-0001")
	assert.Nil(err)
	assert.Equal("worker", entry.OwnerID)
	assert.Equal(client.Incarnation(), entry.OwnerIncarnation)

	_, err = client.GetAssignment(ctx, "unknown")
	assert.ErrorIs(err, ErrUnitNotFound)

	members, err := client.ListMembers(ctx)
	assert.Nil(err)
	require.Len(t, members, 1)
	assert.Equal("worker:50051", members[0].Address)

	watchCtx, cancel := context.WithCancel(ctx)
	received := make(chan AssignmentEntry, 16)
	done := make(chan error, 1)
	go func() {
		done <- client.WatchAssignments(watchCtx, 0, func(entry AssignmentEntry) error {
			received <- entry
			return nil
		})
	}()

	owned := map[string]string{}
	for len(owned) < 3 {
		select {
		case entry := <-received:
			if entry.Assigned() {
				owned[entry.UnitID] = entry.OwnerID
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for assignments")
		}
	}
	for unit, owner := range owned {
		assert.Equal(c.Snapshot().Assignments[unit].OwnerID, owner)
	}

	declared, err := client.DeclareUnits(ctx, []string{"extra"})
	assert.Nil(err)
	assert.Equal([]string{"extra"}, declared)

	deadline := time.After(5 * time.Second)
	for {
		var entry AssignmentEntry
		select {
		case entry = <-received:
		case <-deadline:
			t.Fatal("timeout waiting for new assignment")
		}
		if entry.UnitID == "extra" {
			assert.Equal("worker", entry.OwnerID)
			break
		}
	}
	assert.Eventually(func() bool {
		return c.Snapshot().Assignments["extra"].Sequence == client.LastSeen()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.Nil(err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	sequence, err := client.AppendLog(ctx, []byte("payload"))
	assert.Nil(err)
	var records []*Record
	assert.Nil(client.ReadLog(ctx, sequence, false, func(record *Record) error {
		records = append(records, record)
		return nil
	}))
	require.Len(t, records, 1)
	assert.Equal([]byte("payload"), records[0].Payload)
	assert.Equal(RecordData, records[0].Kind)
}

func TestClient_failover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	network := newBufnet()

	standby, _ := newTestCoordinator(t, NewInMemoryStorage(), nil)
	standbyServer := network.serve(t, "standby", ServerOptions{Coordinator: standby})
	defer standbyServer.Stop()

	leader, _, stop := startCoordinator(t, NewInMemoryStorage(), nil)
	defer func() {
		assert.Nil(stop())
	}()
	leaderServer := network.serve(t, "leader", ServerOptions{Coordinator: leader})
	defer leaderServer.Stop()

	client, err := NewClient(ClientOptions{
		Addresses:   []string{"passthrough:///standby", "passthrough:///leader"},
		MemberID:    "worker",
		Incarnation: "1",
		DialOptions: []grpc.DialOption{network.dialOption()},
	})
	require.Nil(t, err)
	defer func() {
		assert.Nil(client.Close())
	}()

	member, err := client.Register(ctx)
	assert.Nil(err)
	assert.Equal("1", member.Incarnation)
	_, ok := leader.Snapshot().Member("worker", "1")
	assert.True(ok)

	_, err = client.Heartbeat(ctx)
	assert.Nil(err)

	other, err := NewClient(ClientOptions{
		Addresses:   []string{"passthrough:///standby"},
		MemberID:    "worker",
		DialOptions: []grpc.DialOption{network.dialOption()},
	})
	require.Nil(t, err)
	defer func() {
		assert.Nil(other.Close())
	}()
	_, err = other.Register(ctx)
	assert.ErrorIs(err, ErrNotReady)

	_, err = NewClient(ClientOptions{})
	assert.ErrorIs(err, ErrInvalidArgument)
}

func TestServer_logService(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	network := newBufnet()

	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()
	server := network.serve(t, "logservice", ServerOptions{LogBackend: log})
	defer server.Stop()

	client, err := NewLogClient("passthrough:///logservice", network.dialOption())
	require.Nil(t, err)
	defer func() {
		assert.Nil(client.Close())
	}()

	for index := range 5 {
		sequence, err := client.Append(ctx, []byte{byte(index)})
		assert.Nil(err)
		assert.Equal(uint64(index+1), sequence)
	}

	var records []*Record
	assert.Nil(client.Read(ctx, 2, 2, false, func(record *Record) error {
		records = append(records, record)
		return nil
	}))
	require.Len(t, records, 2)
	assert.Equal(uint64(2), records[0].Sequence)
	assert.Equal([]byte{2}, records[1].Payload)

	records = nil
	assert.Nil(client.Read(ctx, 0, 0, false, func(record *Record) error {
		records = append(records, record)
		return nil
	}))
	assert.Len(records, 5)

	followCtx, cancel := context.WithCancel(ctx)
	received := make(chan *Record, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Read(followCtx, 6, 0, true, func(record *Record) error {
			received <- record
			return nil
		})
	}()

	sequence, err := client.Append(ctx, []byte("live"))
	assert.Nil(err)
	select {
	case record := <-received:
		assert.Equal(sequence, record.Sequence)
		assert.Equal([]byte("live"), record.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for followed record")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}

func TestServer_stop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	network := newBufnet()

	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()
	server := network.serve(t, "logservice", ServerOptions{LogBackend: log})

	client, err := NewLogClient("passthrough:///logservice", network.dialOption())
	require.Nil(t, err)
	defer func() {
		assert.Nil(client.Close())
	}()

	_, err = client.Append(ctx, []byte("first"))
	require.Nil(t, err)

	received := make(chan *Record, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Read(ctx, 1, 0, true, func(record *Record) error {
			received <- record
			return nil
		})
	}()
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for record")
	}

	stopped := make(chan struct{})
	go func() {
		server.Stop()
		close(stopped)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(err, ErrShutdown)
		assert.True(retryable(err))
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = client.Append(ctx, []byte("late"))
	assert.NotNil(err)
}
