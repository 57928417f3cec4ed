package commands

import (
	"context"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/Lord-Y/ordinator/logger"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	bolt "go.etcd.io/bbolt"
)

// logServiceConfig hold all flags of the logservice command
type logServiceConfig struct {
	NodeID           string
	DataDir          string
	Host             string
	GRPCPort         int
	APIPort          int
	WriteRetries     int
	OpenTimeout      time.Duration
	MetricsNamespace string
}

// LogService returns the command starting a standalone log service
func LogService() *cli.Command {
	var config logServiceConfig

	return &cli.Command{
		Name:  "logservice",
		Usage: "Start a standalone durable log service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "node-id",
				Usage:       "Id of this instance, the hostname is used when empty",
				Sources:     env("NODE_ID"),
				Destination: &config.NodeID,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Aliases:     []string{"d"},
				Usage:       "Directory where the log is stored",
				Value:       "/var/lib/ordinator",
				Sources:     env("DATA_DIR"),
				Destination: &config.DataDir,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "Address the grpc server listens on",
				Value:       ordinator.GRPCAddress,
				Sources:     env("HOST"),
				Destination: &config.Host,
			},
			&cli.IntFlag{
				Name:        "grpc-port",
				Aliases:     []string{"gp"},
				Usage:       "grpc port to use",
				Value:       int(ordinator.LogServiceGRPCPort),
				Sources:     env("GRPC_PORT"),
				Destination: &config.GRPCPort,
			},
			&cli.IntFlag{
				Name:        "api-port",
				Aliases:     []string{"ap"},
				Usage:       "admin http port to use",
				Value:       8081,
				Sources:     env("API_PORT"),
				Destination: &config.APIPort,
			},
			&cli.IntFlag{
				Name:        "write-retries",
				Usage:       "Times a failed write is retried before the writer path is declared unhealthy, 0 disables retries",
				Value:       3,
				Sources:     env("WRITE_RETRIES"),
				Destination: &config.WriteRetries,
			},
			&cli.DurationFlag{
				Name:        "open-timeout",
				Usage:       "Time to wait for the storage lock held by another process",
				Value:       10 * time.Second,
				Sources:     env("OPEN_TIMEOUT"),
				Destination: &config.OpenTimeout,
			},
			&cli.StringFlag{
				Name:        "metrics-namespace",
				Usage:       "Namespace prefix of every metric",
				Sources:     env("METRICS_NAMESPACE"),
				Destination: &config.MetricsNamespace,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return config.run(ctx)
		},
	}
}

// openLog opens and replays the log
func (config *logServiceConfig) openLog(ctx context.Context) (*ordinator.Log, error) {
	if config.NodeID == "" {
		config.NodeID = newNodeID()
	}

	store, err := ordinator.NewBoltStorage(ordinator.BoltOptions{
		DataDir: config.DataDir,
		Options: &bolt.Options{Timeout: config.OpenTimeout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Fail to open storage")
	}
	cache, err := ordinator.NewLogCache(ordinator.LogCacheOptions{Store: store, CacheOnWrite: true})
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "Fail to build log cache")
	}

	retries, disabled := writeRetries(config.WriteRetries)
	log, err := ordinator.OpenLog(ordinator.LogOptions{
		Logger:                 logger.NewComponentLogger("logservice"),
		Store:                  cache,
		NodeID:                 config.NodeID,
		WriteRetries:           retries,
		DisableWriteRetries:    disabled,
		MetricsNamespacePrefix: config.MetricsNamespace,
	})
	if err != nil {
		_ = cache.Close()
		return nil, errors.Wrap(err, "Fail to open log")
	}
	if err := log.Replay(ctx, nil); err != nil {
		_ = log.Close()
		return nil, errors.Wrap(err, "Fail to replay log")
	}
	return log, nil
}

// run starts the log service until a termination signal is received
func (config *logServiceConfig) run(ctx context.Context) error {
	ctx, cancel := notifyContext(ctx)
	defer cancel()

	log, err := config.openLog(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Close()
	}()

	serviceLogger := logger.NewComponentLogger("logservice")
	server, err := ordinator.NewServer(ordinator.ServerOptions{
		Logger:     serviceLogger,
		Address:    address(config.Host, config.GRPCPort),
		LogBackend: log,
	})
	if err != nil {
		return errors.Wrap(err, "Fail to build grpc server")
	}
	adminAPI := newAPI(serviceLogger, config.APIPort, nil, log.Healthy)

	return serve(ctx, cancel, server, adminAPI, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
}
