package ordinator

import (
	"context"
	"errors"

	"github.com/Lord-Y/ordinator/ordinatorpb"
	"github.com/rs/zerolog"
)

// errReadLimitReached stops a read once the requested amount of records is sent
var errReadLimitReached = errors.New("read limit reached")

// LogBackend is the ordered durable storage served by the log service
type LogBackend interface {
	// AppendLog appends an opaque payload and returns its sequence
	AppendLog(ctx context.Context, payload []byte) (uint64, error)

	// ReadLog hands over records starting at from to fn
	ReadLog(ctx context.Context, from uint64, follow bool, fn func(*Record) error) error
}

// coordinatorService implements ordinatorpb.CoordinatorServer
type coordinatorService struct {
	ordinatorpb.UnimplementedCoordinatorServer

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// coordinator holds the coordinator core
	coordinator *Coordinator
}

// logService implements ordinatorpb.LogServiceServer
type logService struct {
	ordinatorpb.UnimplementedLogServiceServer

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// backend holds the log served
	backend LogBackend
}
