package main

import (
	"context"
	"os"

	"github.com/Lord-Y/ordinator/commands"
	"github.com/Lord-Y/ordinator/logger"
)

func main() {
	cmd := commands.Coordinator()
	cmd.Name = "ordinator-coordinator"
	cmd.Description = "Tracks workers membership and assigns units of work over a durable ordered log"
	cmd.EnableShellCompletion = true

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.NewLogger().Fatal().Err(err).Msg("Error occured while executing the program")
	}
}
