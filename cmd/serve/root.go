package serve

import (
	"context"
	"github.com/spf13/cobra"
	cmdUtil "github.com/tenkdog/jarvis/cmd/util"
	"github.com/tenkdog/jarvis/rpc/common"
	"github.com/tenkdog/jarvis/rpc/server"
	"github.com/tenkdog/jarvis/rpc/transport/http"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the Jarvis webhook server",
		Long:    `Start the Jarvis webhook server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is JARVIS_<flag> (e.g. JARVIS_CORE_TTL=90s). The variables of older deployments (GIST_TOKEN, GIST_ID_CORE, CORE_TTL_SEC, PORT, ...) are accepted as well.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupServerFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	serveCmdConfig = conf

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the webhook server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	documents, closeStore, err := server.NewDocumentStore(*serveCmdConfig)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeStore()
	}()

	serv, err := server.NewServer(
		*serveCmdConfig,
		http.NewHttpServerTransport(),
		documents,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
