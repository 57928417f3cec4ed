package ordinator

import (
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

var kacp = keepalive.ClientParameters{
	Time:                10 * time.Second, // send pings every 10 seconds if there is no activity
	Timeout:             time.Second,      // wait 1 second for ping ack before considering the connection dead
	PermitWithoutStream: true,             // send pings even without active streams
}

// connectionManager keeps a single grpc connection per address
type connectionManager struct {
	// mu is used to ensure lock concurrency
	mu sync.Mutex

	// connections hold grpc connections by address
	connections map[string]*grpc.ClientConn

	// dialOptions are appended to default dial options
	dialOptions []grpc.DialOption
}

// newConnectionManager returns a connection manager using the provided dial options
func newConnectionManager(dialOptions ...grpc.DialOption) *connectionManager {
	return &connectionManager{
		connections: make(map[string]*grpc.ClientConn),
		dialOptions: dialOptions,
	}
}

// getConnection returns the connection to address, creating it if needed
func (m *connectionManager) getConnection(address string) (*grpc.ClientConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[address]; ok {
		return conn, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, m.dialOptions...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}
	m.connections[address] = conn
	return conn, nil
}

// closeAll closes every connection
func (m *connectionManager) closeAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for address, conn := range m.connections {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(m.connections, address)
	}
	return err
}
