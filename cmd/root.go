package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/tenkdog/jarvis/cmd/dataset"
	"github.com/tenkdog/jarvis/cmd/serve"
	"github.com/tenkdog/jarvis/cmd/util"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "jarvis",
		Short: "moderation bot of the 10K DOG community",
		Long: fmt.Sprintf(`Jarvis (v%s)

Webhook server of the 10K DOG moderation bot. The bot state lives in two
JSON documents at a remote store (GitHub gists) and is cached in memory,
mutations are written back debounced and a circuit breaker protects the
bot from an unreachable store.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Jarvis",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jarvis v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(dataset.DatasetCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
