package ordinator

import (
	"fmt"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	// GRPCAddress defines the default address to run the grpc server
	GRPCAddress string = "0.0.0.0"

	// GRPCPort define the default port to run the coordinator grpc server
	GRPCPort uint16 = 50051

	// LogServiceGRPCPort define the default port to run the logservice grpc server
	LogServiceGRPCPort uint16 = 50052

	// DefaultHeartbeatWindow is the time a member can stay without
	// heartbeat before being suspected
	DefaultHeartbeatWindow = 5 * time.Second

	// defaultSuspectGrace is the time a suspect member has to recover
	// before being departed
	defaultSuspectGrace = 10 * time.Second

	// defaultCoalesceWindow is the time membership changes are batched
	// before running a reassignment round
	defaultCoalesceWindow = 500 * time.Millisecond

	// defaultDepartedRetention is the time a departed member is kept before eviction
	defaultDepartedRetention = 5 * time.Minute

	// defaultForceStopTimeout is the time after which the grpc server is forced to stop
	defaultForceStopTimeout = 60 * time.Second

	// minSweepInterval is the minimum interval between two liveness sweeps
	minSweepInterval = 10 * time.Millisecond
)

// Options holds config that will be modified by users
type Options struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// NodeID is the id of the current coordinator replica.
	// Default to a random uuid
	NodeID string

	// DataDir is the directory where the log is stored on disk.
	// It's required unless Store is provided
	DataDir string

	// Store overrides the storage of the log.
	// When set, DataDir is ignored and the store is never closed
	// when leadership is lost
	Store LogStore

	// DisableLogCache disables the in memory cache in front of the store
	DisableLogCache bool

	// HeartbeatWindow is the time a member can stay without heartbeat
	// or pod event before being suspected.
	// Default to 5s
	HeartbeatWindow time.Duration

	// SuspectGrace is the time a suspect member has to recover
	// before being departed.
	// Default to 10s
	SuspectGrace time.Duration

	// CoalesceWindow is the time membership changes are batched
	// before running a reassignment round.
	// Default to 500ms
	CoalesceWindow time.Duration

	// DepartedRetention is the time a departed member is kept before being evicted.
	// Default to 5m
	DepartedRetention time.Duration

	// SweepInterval is the interval between two liveness sweeps.
	// Default to a quarter of HeartbeatWindow
	SweepInterval time.Duration

	// Units is the amount of units of work declared at startup.
	// Units are named unit-0000, unit-0001 and so on
	Units int

	// KeepSuspectUnits lets suspect members keep their units
	// during the suspect grace.
	// By default, units owned by suspect members move to active members
	KeepSuspectUnits bool

	// WriteRetries is the number of times a failed write is retried
	// before the writer path is declared unhealthy.
	// Default to 3
	WriteRetries uint64

	// DisableWriteRetries makes the first failed write declare
	// the writer path unhealthy. WriteRetries is ignored
	DisableWriteRetries bool

	// RetryBackoff is the first wait between two write attempts.
	// Default to 50ms
	RetryBackoff time.Duration

	// ForceStopTimeout is the timeout after which grpc server will forced to stop.
	// Default to 60s
	ForceStopTimeout time.Duration

	// MetricsNamespacePrefix is the namespace to use for all ordinator metrics.
	// When set, the full metric name will be `<MetricsNamespacePrefix>_ordinator_<metric_name>`.
	MetricsNamespacePrefix string

	// Registerer is where metrics are registered.
	// Default to prometheus.DefaultRegisterer
	Registerer prometheus.Registerer

	// Elector decides which replica is allowed to write the log.
	// Default to StaticElector which is always leader
	Elector Elector

	// EventSource produces pod lifecycle events.
	// When nil, members only come from RegisterMember
	EventSource EventSource
}

// withDefaults validates options and fills default values
func (o Options) withDefaults() (Options, error) {
	if o.Store == nil && o.DataDir == "" {
		return o, ErrDataDirRequired
	}
	if o.Units < 0 {
		return o, fmt.Errorf("%w: units must be positive", ErrInvalidArgument)
	}
	if o.Logger == nil {
		o.Logger = logger.NewLogger()
	}
	if o.NodeID == "" {
		o.NodeID = uuid.NewString()
	}
	if o.HeartbeatWindow <= 0 {
		o.HeartbeatWindow = DefaultHeartbeatWindow
	}
	if o.SuspectGrace <= 0 {
		o.SuspectGrace = defaultSuspectGrace
	}
	if o.CoalesceWindow <= 0 {
		o.CoalesceWindow = defaultCoalesceWindow
	}
	if o.DepartedRetention <= 0 {
		o.DepartedRetention = defaultDepartedRetention
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = max(o.HeartbeatWindow/4, minSweepInterval)
	}
	switch {
	case o.DisableWriteRetries:
		o.WriteRetries = 0
	case o.WriteRetries == 0:
		o.WriteRetries = defaultWriteRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.ForceStopTimeout <= 0 {
		o.ForceStopTimeout = defaultForceStopTimeout
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if o.Elector == nil {
		o.Elector = StaticElector{}
	}
	return o, nil
}

// unitName returns the name of the configured unit at index
func unitName(index int) string {
	return fmt.Sprintf("unit-%04d", index)
}

// configuredUnits returns the units declared by configuration
func (o Options) configuredUnits() []string {
	units := make([]string, 0, o.Units)
	for i := range o.Units {
		units = append(units, unitName(i))
	}
	return units
}
