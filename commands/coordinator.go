package commands

import (
	"context"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/Lord-Y/ordinator/kubernetes"
	"github.com/Lord-Y/ordinator/logger"
	"github.com/Lord-Y/ordinator/redislease"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const (
	// electorStatic is the single replica elector
	electorStatic = "static"

	// electorRedis is the redis lease elector
	electorRedis = "redis"
)

// coordinatorConfig hold all flags of the coordinator command
type coordinatorConfig struct {
	NodeID            string
	DataDir           string
	Host              string
	GRPCPort          int
	APIPort           int
	HeartbeatWindow   time.Duration
	SuspectGrace      time.Duration
	CoalesceWindow    time.Duration
	DepartedRetention time.Duration
	Units             int
	KeepSuspectUnits  bool
	WriteRetries      int
	MetricsNamespace  string

	Elector        string
	RedisAddresses []string
	RedisPassword  string
	LeaseKey       string
	LeaseTTL       time.Duration

	Kubernetes    bool
	Kubeconfig    string
	Namespace     string
	LabelSelector string
	MemberPort    int
}

// Coordinator returns the command starting a coordinator replica
func Coordinator() *cli.Command {
	var config coordinatorConfig

	return &cli.Command{
		Name:  "coordinator",
		Usage: "Start a coordinator replica",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "node-id",
				Usage:       "Id of this replica, a random one is generated when empty",
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
				Value:       int(ordinator.GRPCPort),
				Sources:     env("GRPC_PORT"),
				Destination: &config.GRPCPort,
			},
			&cli.IntFlag{
				Name:        "api-port",
				Aliases:     []string{"ap"},
				Usage:       "admin http port to use",
				Value:       8080,
				Sources:     env("API_PORT"),
				Destination: &config.APIPort,
			},
			&cli.DurationFlag{
				Name:        "heartbeat-window",
				Usage:       "Time a member can stay silent before being suspected",
				Value:       ordinator.DefaultHeartbeatWindow,
				Sources:     env("HEARTBEAT_WINDOW"),
				Destination: &config.HeartbeatWindow,
			},
			&cli.DurationFlag{
				Name:        "suspect-grace",
				Usage:       "Time a suspect member has to recover before departing",
				Value:       10 * time.Second,
				Sources:     env("SUSPECT_GRACE"),
				Destination: &config.SuspectGrace,
			},
			&cli.DurationFlag{
				Name:        "coalesce-window",
				Usage:       "Time membership changes are batched before a reassignment round",
				Value:       500 * time.Millisecond,
				Sources:     env("COALESCE_WINDOW"),
				Destination: &config.CoalesceWindow,
			},
			&cli.DurationFlag{
				Name:        "departed-retention",
				Usage:       "Time a departed member is kept before eviction",
				Value:       5 * time.Minute,
				Sources:     env("DEPARTED_RETENTION"),
				Destination: &config.DepartedRetention,
			},
			&cli.IntFlag{
				Name:        "units",
				Usage:       "Amount of units of work declared at startup",
				Sources:     env("UNITS"),
				Destination: &config.Units,
			},
			&cli.BoolFlag{
				Name:        "keep-suspect-units",
				Usage:       "Let suspect members keep their units during the suspect grace",
				Sources:     env("KEEP_SUSPECT_UNITS"),
				Destination: &config.KeepSuspectUnits,
			},
			&cli.IntFlag{
				Name:        "write-retries",
				Usage:       "Times a failed write is retried before the writer path is declared unhealthy, 0 disables retries",
				Value:       3,
				Sources:     env("WRITE_RETRIES"),
				Destination: &config.WriteRetries,
			},
			&cli.StringFlag{
				Name:        "metrics-namespace",
				Usage:       "Namespace prefix of every metric",
				Sources:     env("METRICS_NAMESPACE"),
				Destination: &config.MetricsNamespace,
			},
			&cli.StringFlag{
				Name:        "elector",
				Usage:       "Leader election to use, static or redis",
				Value:       electorStatic,
				Sources:     env("ELECTOR"),
				Destination: &config.Elector,
			},
			&cli.StringSliceFlag{
				Name:        "redis-address",
				Usage:       "Address of a redis node, this flag is repeatable",
				Sources:     env("REDIS_ADDRESSES"),
				Destination: &config.RedisAddresses,
			},
			&cli.StringFlag{
				Name:        "redis-password",
				Usage:       "Password of redis",
				Sources:     env("REDIS_PASSWORD"),
				Destination: &config.RedisPassword,
			},
			&cli.StringFlag{
				Name:        "lease-key",
				Usage:       "Redis key holding the writer lease",
				Sources:     env("LEASE_KEY"),
				Destination: &config.LeaseKey,
			},
			&cli.DurationFlag{
				Name:        "lease-ttl",
				Usage:       "Time to live of the writer lease",
				Value:       10 * time.Second,
				Sources:     env("LEASE_TTL"),
				Destination: &config.LeaseTTL,
			},
			&cli.BoolFlag{
				Name:        "kubernetes",
				Usage:       "Discover members by watching pods",
				Sources:     env("KUBERNETES"),
				Destination: &config.Kubernetes,
			},
			&cli.StringFlag{
				Name:        "kubeconfig",
				Usage:       "Kubeconfig file, the in cluster config is used when empty",
				Sources:     env("KUBECONFIG"),
				Destination: &config.Kubeconfig,
			},
			&cli.StringFlag{
				Name:        "namespace",
				Usage:       "Namespace of the member pods",
				Value:       "default",
				Sources:     env("NAMESPACE"),
				Destination: &config.Namespace,
			},
			&cli.StringFlag{
				Name:        "label-selector",
				Usage:       "Label selector of the member pods",
				Sources:     env("LABEL_SELECTOR"),
				Destination: &config.LabelSelector,
			},
			&cli.IntFlag{
				Name:        "member-port",
				Usage:       "Port appended to the pod ip to build the member address",
				Sources:     env("MEMBER_PORT"),
				Destination: &config.MemberPort,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return config.run(ctx)
		},
	}
}

// options converts the flags into coordinator options
func (config *coordinatorConfig) options() ordinator.Options {
	retries, disabled := writeRetries(config.WriteRetries)
	return ordinator.Options{
		Logger:                 logger.NewComponentLogger("coordinator"),
		NodeID:                 config.NodeID,
		DataDir:                config.DataDir,
		HeartbeatWindow:        config.HeartbeatWindow,
		SuspectGrace:           config.SuspectGrace,
		CoalesceWindow:         config.CoalesceWindow,
		DepartedRetention:      config.DepartedRetention,
		Units:                  config.Units,
		KeepSuspectUnits:       config.KeepSuspectUnits,
		WriteRetries:           retries,
		DisableWriteRetries:    disabled,
		MetricsNamespacePrefix: config.MetricsNamespace,
	}
}

// elector builds the leader election.
// The returned redis client must be closed by the caller when not nil
func (config *coordinatorConfig) elector(ctx context.Context, nodeID string) (ordinator.Elector, redis.UniversalClient, error) {
	switch config.Elector {
	case "", electorStatic:
		return ordinator.StaticElector{}, nil, nil
	case electorRedis:
		client, err := redislease.NewClient(ctx, config.RedisAddresses, config.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		elector, err := redislease.NewElector(redislease.Options{
			Logger: logger.NewComponentLogger("redislease"),
			Client: client,
			Key:    config.LeaseKey,
			NodeID: nodeID,
			TTL:    config.LeaseTTL,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return elector, client, nil
	}
	return nil, nil, errors.Errorf("unknown elector %q", config.Elector)
}

// eventSource builds the pod source when kubernetes discovery is enabled
func (config *coordinatorConfig) eventSource() (ordinator.EventSource, error) {
	if !config.Kubernetes {
		return nil, nil
	}
	client, err := kubernetes.NewClientset(config.Kubeconfig)
	if err != nil {
		return nil, err
	}
	options := config.podSourceOptions()
	options.Client = client
	return kubernetes.NewPodSource(options)
}

// podSourceOptions returns the pod source config.
// Ready pods are resent within the heartbeat window
// so that members only reported by pod events stay active
func (config *coordinatorConfig) podSourceOptions() kubernetes.Options {
	window := config.HeartbeatWindow
	if window <= 0 {
		window = ordinator.DefaultHeartbeatWindow
	}
	return kubernetes.Options{
		Logger:         logger.NewComponentLogger("kubernetes"),
		Namespace:      config.Namespace,
		LabelSelector:  config.LabelSelector,
		MemberPort:     config.MemberPort,
		LivenessWindow: window,
	}
}

// run starts the coordinator, its grpc server and admin api
// until a termination signal is received
func (config *coordinatorConfig) run(ctx context.Context) error {
	ctx, cancel := notifyContext(ctx)
	defer cancel()

	options := config.options()
	if options.NodeID == "" {
		options.NodeID = newNodeID()
	}

	elector, redisClient, err := config.elector(ctx, options.NodeID)
	if err != nil {
		return errors.Wrap(err, "Fail to build elector")
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}
	options.Elector = elector

	source, err := config.eventSource()
	if err != nil {
		return errors.Wrap(err, "Fail to build pod source")
	}
	if source != nil {
		options.EventSource = source
	}

	coordinator, err := ordinator.NewCoordinator(options)
	if err != nil {
		return errors.Wrap(err, "Fail to build coordinator")
	}

	server, err := ordinator.NewServer(ordinator.ServerOptions{
		Logger:      options.Logger,
		Address:     address(config.Host, config.GRPCPort),
		Coordinator: coordinator,
	})
	if err != nil {
		return errors.Wrap(err, "Fail to build grpc server")
	}
	adminAPI := newAPI(options.Logger, config.APIPort, coordinator, coordinator.IsReady)

	if err := serve(ctx, cancel, server, adminAPI, coordinator.Run); err != nil {
		return errors.Wrap(err, "Coordinator stopped")
	}
	return nil
}
