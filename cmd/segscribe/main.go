package main

import (
	"os"

	"github.com/cwhuang/segscribe/cmd/segscribe/cmd"
	"github.com/cwhuang/segscribe/pkg/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Application execution failed")
		os.Exit(1)
	}
}
