package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/notnil/canclient/cmd/link"
	"github.com/notnil/canclient/cmd/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version = "0.3.0"
)

var (
	zapLogger *zap.Logger
	logger    = slog.New(slog.DiscardHandler)

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "canctl",
		Short: "send, dump and probe CAN buses",
		Long: fmt.Sprintf(`canctl (v%s)

A command line client for CAN buses reached through SocketCAN, an
in-process virtual bus, UDP multicast or a vendor bridge. With
--interface default the transport is picked by the platform fallback
chain.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of canctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("canctl v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupBusFlags(RootCmd)
	util.SetupLogFlags(RootCmd)
	RootCmd.PersistentFlags().String("metrics-addr", "", util.WrapString("Address to serve Prometheus metrics on, e.g. :9100 (disabled when empty)"))

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(sendCmd)
	RootCmd.AddCommand(dumpCmd)
	RootCmd.AddCommand(probeCmd)
	RootCmd.AddCommand(link.LinkCommands)
}

// setup binds flags, builds the logger and starts the metrics endpoint
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	zapLogger, logger = util.SetupLogger(util.GetLogConfig())
	util.StartMetrics(util.MetricsAddr(), logger)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
