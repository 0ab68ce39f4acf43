package dataset

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tenkdog/jarvis/cmd/util"
	"github.com/tenkdog/jarvis/lib/cache"
	"github.com/tenkdog/jarvis/rpc/common"
	"github.com/tenkdog/jarvis/rpc/server"
	"github.com/tenkdog/jarvis/rpc/transport/http"
	"strings"
)

var (
	manager    *cache.Manager
	closeStore func() error

	// DatasetCommands represents the dataset command group
	DatasetCommands = &cobra.Command{
		Use:                "dataset",
		Short:              "Inspect and edit the datasets of the bot",
		Long:               `Inspect and edit the datasets of the bot. The commands use the same configuration as the server (flags or JARVIS_<flag> environment variables) and talk to the remote store directly, a running server picks up changes after its TTL.`,
		PersistentPreRunE:  setupManager,
		PersistentPostRunE: closeManager,
	}
)

func init() {
	// Add the configuration flags of the server
	util.SetupServerFlags(DatasetCommands)

	// Add subcommands
	DatasetCommands.AddCommand(getCmd)
	DatasetCommands.AddCommand(dumpCmd)
	DatasetCommands.AddCommand(setCmd)
	DatasetCommands.AddCommand(statusCmd)
}

// setupManager creates the datasets on top of the configured remote store
func setupManager(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := util.GetServerConfig()
	if err != nil {
		return err
	}

	// keep stdout clean for the output of the command
	if !viper.IsSet("log-level") {
		config.LogLevel = "warn"
	}
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	documents, closeFn, err := server.NewDocumentStore(*config)
	if err != nil {
		return err
	}

	// the server is only used to assemble the datasets, it never listens
	serv, err := server.NewServer(*config, http.NewHttpServerTransport(), documents)
	if err != nil {
		_ = closeFn()
		return err
	}

	manager = serv.Manager()
	closeStore = closeFn
	return nil
}

func closeManager(_ *cobra.Command, _ []string) error {
	if closeStore == nil {
		return nil
	}
	return closeStore()
}

// lookup returns the dataset called name
func lookup(name string) (*cache.Dataset, error) {
	d, ok := manager.Dataset(name)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q (one of %s)", name, strings.Join(manager.Names(), ", "))
	}
	return d, nil
}
