package main

import (
	"context"
	"os"

	"github.com/Lord-Y/ordinator/commands"
	"github.com/Lord-Y/ordinator/logger"
)

func main() {
	cmd := commands.LogService()
	cmd.Name = "ordinator-logservice"
	cmd.Description = "Serves a durable ordered log over grpc"
	cmd.EnableShellCompletion = true

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.NewLogger().Fatal().Err(err).Msg("Error occured while executing the program")
	}
}
