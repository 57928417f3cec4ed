package ordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/Lord-Y/ordinator/ordinatorpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

const (
	// defaultHeartbeatInterval is the interval between two client heartbeats
	defaultHeartbeatInterval = time.Second

	// defaultRequestTimeout is the deadline of unary calls made by the client
	defaultRequestTimeout = 5 * time.Second

	// defaultReconnectBackoff is the first wait before resuming a broken watch
	defaultReconnectBackoff = 100 * time.Millisecond
)

// ClientOptions holds config of the worker side client
type ClientOptions struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Addresses are the coordinator replicas. It's required.
	// The client moves to the next one when a replica is not ready
	Addresses []string

	// MemberID is the identity of the worker
	MemberID string

	// Incarnation is the registration instance of the worker.
	// When empty, the coordinator generates one on registration
	Incarnation string

	// MemberAddress is the network address advertised by the worker
	MemberAddress string

	// HeartbeatInterval is the interval between two heartbeats.
	// Default to 1s
	HeartbeatInterval time.Duration

	// RequestTimeout is the deadline of unary calls.
	// Default to 5s
	RequestTimeout time.Duration

	// ReconnectBackoff is the first wait before resuming a broken watch.
	// Default to 100ms
	ReconnectBackoff time.Duration

	// DialOptions are appended to default dial options
	DialOptions []grpc.DialOption
}

// Client is used by workers to register, heartbeat and follow assignments
type Client struct {
	// mu protects incarnation
	mu sync.Mutex

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// options holds the client config
	options ClientOptions

	// incarnation is the incarnation returned on registration
	incarnation string

	// current is the index of the replica in use
	current atomic.Uint64

	// lastSeen is the sequence of the last assignment change received
	lastSeen atomic.Uint64

	// connectionManager holds grpc connections to replicas
	connectionManager *connectionManager
}

// NewClient returns a client connected to the coordinator replicas
func NewClient(options ClientOptions) (*Client, error) {
	if len(options.Addresses) == 0 {
		return nil, fmt.Errorf("%w: at least one address is required", ErrInvalidArgument)
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}
	if options.HeartbeatInterval <= 0 {
		options.HeartbeatInterval = defaultHeartbeatInterval
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = defaultRequestTimeout
	}
	if options.ReconnectBackoff <= 0 {
		options.ReconnectBackoff = defaultReconnectBackoff
	}

	return &Client{
		logger:            options.Logger,
		options:           options,
		incarnation:       options.Incarnation,
		connectionManager: newConnectionManager(options.DialOptions...),
	}, nil
}

// Incarnation returns the incarnation of the worker
func (c *Client) Incarnation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incarnation
}

// LastSeen returns the sequence of the last assignment change received
func (c *Client) LastSeen() uint64 {
	return c.lastSeen.Load()
}

// coordinator returns the client of the replica in use
func (c *Client) coordinator() (ordinatorpb.CoordinatorClient, error) {
	index := c.current.Load() % uint64(len(c.options.Addresses))
	conn, err := c.connectionManager.getConnection(c.options.Addresses[index])
	if err != nil {
		return nil, err
	}
	return ordinatorpb.NewCoordinatorClient(conn), nil
}

// next moves to the next replica
func (c *Client) next() {
	c.current.Add(1)
}

// call runs fn against the replicas until one of them is ready
func (c *Client) call(ctx context.Context, fn func(context.Context, ordinatorpb.CoordinatorClient) error) error {
	var err error
	for range c.options.Addresses {
		var client ordinatorpb.CoordinatorClient
		client, err = c.coordinator()
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.options.RequestTimeout)
		err = FromStatus(fn(callCtx, client))
		cancel()
		if err == nil || !retryable(err) {
			return err
		}
		c.next()
	}
	return err
}

// Register registers the worker and keeps the incarnation returned
func (c *Client) Register(ctx context.Context) (MemberInfo, error) {
	var member MemberInfo
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.RegisterMember(ctx, &ordinatorpb.RegisterMemberRequest{
			MemberID:    c.options.MemberID,
			Incarnation: c.Incarnation(),
			Address:     c.options.MemberAddress,
		})
		if err != nil {
			return err
		}
		member = memberFromProto(response.Member)
		return nil
	})
	if err != nil {
		return MemberInfo{}, err
	}

	c.mu.Lock()
	c.incarnation = member.Incarnation
	c.mu.Unlock()
	return member, nil
}

// Heartbeat refreshes the liveness of the worker
func (c *Client) Heartbeat(ctx context.Context) (MemberInfo, error) {
	var member MemberInfo
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.Heartbeat(ctx, &ordinatorpb.HeartbeatRequest{
			MemberID:    c.options.MemberID,
			Incarnation: c.Incarnation(),
		})
		if err != nil {
			return err
		}
		member = memberFromProto(response.Member)
		return nil
	})
	return member, err
}

// RunHeartbeats sends heartbeats on every interval until ctx is done.
// The worker registers again when the coordinator forgot it
func (c *Client) RunHeartbeats(ctx context.Context) error {
	ticker := time.NewTicker(c.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := c.Heartbeat(ctx)
			if errors.Is(err, ErrNotRegistered) {
				c.logger.Warn().Err(err).
					Str("memberId", c.options.MemberID).
					Str("incarnation", c.Incarnation()).
					Msgf("Worker is not registered, registering a new incarnation")
				c.mu.Lock()
				c.incarnation = ""
				c.mu.Unlock()
				_, err = c.Register(ctx)
			}
			if err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).
					Str("memberId", c.options.MemberID).
					Msgf("Fail to send heartbeat")
			}
		}
	}
}

// GetAssignment returns the last committed assignment of the unit
func (c *Client) GetAssignment(ctx context.Context, unitID string) (AssignmentEntry, error) {
	var entry AssignmentEntry
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.GetAssignment(ctx, &ordinatorpb.GetAssignmentRequest{UnitID: unitID})
		if err != nil {
			return err
		}
		entry = assignmentFromProto(response.Assignment)
		return nil
	})
	return entry, err
}

// DeclareUnits declares units of work and returns the ones that were unknown
func (c *Client) DeclareUnits(ctx context.Context, units []string) ([]string, error) {
	var declared []string
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.DeclareUnits(ctx, &ordinatorpb.DeclareUnitsRequest{UnitIDs: units})
		if err != nil {
			return err
		}
		declared = response.Declared
		return nil
	})
	return declared, err
}

// ListMembers returns every known member
func (c *Client) ListMembers(ctx context.Context) ([]MemberInfo, error) {
	var members []MemberInfo
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.ListMembers(ctx, &ordinatorpb.ListMembersRequest{})
		if err != nil {
			return err
		}
		members = make([]MemberInfo, 0, len(response.Members))
		for _, member := range response.Members {
			members = append(members, memberFromProto(member))
		}
		return nil
	})
	return members, err
}

// AppendLog appends an opaque payload to the coordinator log
func (c *Client) AppendLog(ctx context.Context, payload []byte) (uint64, error) {
	var sequence uint64
	err := c.call(ctx, func(ctx context.Context, client ordinatorpb.CoordinatorClient) error {
		response, err := client.AppendLog(ctx, &ordinatorpb.AppendRequest{Payload: payload})
		if err != nil {
			return err
		}
		sequence = response.Sequence
		return nil
	})
	return sequence, err
}

// ReadLog hands over records of the coordinator log starting at from to fn
func (c *Client) ReadLog(ctx context.Context, from uint64, follow bool, fn func(*Record) error) error {
	client, err := c.coordinator()
	if err != nil {
		return err
	}
	stream, err := client.ReadLog(ctx, &ordinatorpb.ReadRequest{FromSequence: from, Follow: follow})
	if err != nil {
		return FromStatus(err)
	}
	err = receive(stream, func(record *ordinatorpb.LogRecord) error {
		return fn(recordFromProto(record))
	})
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// WatchAssignments hands over every assignment change committed after lastSeen
// to fn. Broken streams are resumed from the last change received so
// no change is missed. It returns when ctx is done or fn fails
func (c *Client) WatchAssignments(ctx context.Context, lastSeen uint64, fn func(AssignmentEntry) error) error {
	c.lastSeen.Store(lastSeen)

	var failures uint64
	for {
		err := c.watchOnce(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}

		var handlerErr *watchHandlerError
		if errors.As(err, &handlerErr) {
			return handlerErr.err
		}
		if err != nil && !retryable(err) && !errors.Is(err, io.EOF) {
			return err
		}

		failures++
		c.logger.Warn().Err(err).
			Uint64("lastSeen", c.lastSeen.Load()).
			Uint64("attempt", failures).
			Msgf("Assignment watch interrupted, resuming")
		if retryable(err) {
			c.next()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(randomTimeout(backoff(c.options.ReconnectBackoff, failures, 5))):
		}
	}
}

// watchHandlerError wraps errors returned by the watch handler
type watchHandlerError struct {
	err error
}

func (e *watchHandlerError) Error() string {
	return e.err.Error()
}

func (e *watchHandlerError) Unwrap() error {
	return e.err
}

// watchOnce opens a single watch stream
func (c *Client) watchOnce(ctx context.Context, fn func(AssignmentEntry) error) error {
	client, err := c.coordinator()
	if err != nil {
		return err
	}
	stream, err := client.WatchAssignments(ctx, &ordinatorpb.WatchAssignmentsRequest{
		LastSeenSequence: c.lastSeen.Load(),
		MemberID:         c.options.MemberID,
		Incarnation:      c.Incarnation(),
	})
	if err != nil {
		return FromStatus(err)
	}

	return receive(stream, func(change *ordinatorpb.Assignment) error {
		entry := assignmentFromProto(change)
		if err := fn(entry); err != nil {
			return &watchHandlerError{err: err}
		}
		c.lastSeen.Store(entry.Sequence)
		return nil
	})
}

// receive reads the stream until it ends
func receive[T any](stream grpc.ServerStreamingClient[T], fn func(*T) error) error {
	for {
		message, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if err != nil {
			return FromStatus(err)
		}
		if err := fn(message); err != nil {
			return err
		}
	}
}

// Close closes all connections
func (c *Client) Close() error {
	return c.connectionManager.closeAll()
}

// LogClient is a client of the log service
type LogClient struct {
	// conn is the grpc connection
	conn *grpc.ClientConn

	// client is the log service client
	client ordinatorpb.LogServiceClient
}

// NewLogClient returns a client of the log service listening on address
func NewLogClient(address string, dialOptions ...grpc.DialOption) (*LogClient, error) {
	conn, err := newConnectionManager(dialOptions...).getConnection(address)
	if err != nil {
		return nil, err
	}
	return &LogClient{conn: conn, client: ordinatorpb.NewLogServiceClient(conn)}, nil
}

// Append appends an opaque payload and returns its sequence
func (c *LogClient) Append(ctx context.Context, payload []byte) (uint64, error) {
	response, err := c.client.Append(ctx, &ordinatorpb.AppendRequest{Payload: payload})
	if err != nil {
		return 0, FromStatus(err)
	}
	return response.Sequence, nil
}

// Read hands over at most limit records starting at from to fn.
// A limit of 0 means no limit
func (c *LogClient) Read(ctx context.Context, from uint64, limit uint64, follow bool, fn func(*Record) error) error {
	stream, err := c.client.Read(ctx, &ordinatorpb.ReadRequest{FromSequence: from, Limit: limit, Follow: follow})
	if err != nil {
		return FromStatus(err)
	}
	err = receive(stream, func(record *ordinatorpb.LogRecord) error {
		return fn(recordFromProto(record))
	})
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Close closes the connection
func (c *LogClient) Close() error {
	return c.conn.Close()
}
