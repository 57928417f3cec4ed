// Package commands holds the command line of the coordinator
// and logservice binaries
package commands

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Lord-Y/ordinator"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// envPrefix is the prefix of every environment variable
const envPrefix = "ORDINATOR_"

// env returns the environment variable source of a flag
func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

// notifyContext returns a context cancelled on SIGINT or SIGTERM
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// newNodeID returns the hostname, which is the pod name on kubernetes,
// or a random id when it's unknown
func newNodeID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return uuid.NewString()
}

// writeRetries converts the write-retries flag.
// Zero or less disables retries
func writeRetries(value int) (retries uint64, disabled bool) {
	if value <= 0 {
		return 0, true
	}
	return uint64(value), false
}

// address joins host and port
func address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// serve runs the grpc server and the admin api until run returns
// or one of the servers fails to start.
// run must return once ctx is cancelled
func serve(ctx context.Context, cancel context.CancelFunc, server *ordinator.Server, api *api, run func(context.Context) error) error {
	errc := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errc <- err
		}
	}()
	api.start(errc)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case err = <-errc:
		cancel()
		<-done
	}

	server.Stop()
	api.stop()
	return err
}
