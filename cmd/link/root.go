package link

import (
	"fmt"

	"github.com/notnil/canclient"
	"github.com/notnil/canclient/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// LinkCommands represents the SocketCAN link command group
	LinkCommands = &cobra.Command{
		Use:   "link",
		Short: "Inspect and configure SocketCAN interfaces (linux)",
	}

	upCmd = &cobra.Command{
		Use:   "up [interface]",
		Short: "Bring a CAN interface up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ifaceName(args)
			if err := canclient.SetLinkUp(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s up\n", name)
			return nil
		},
	}

	downCmd = &cobra.Command{
		Use:   "down [interface]",
		Short: "Bring a CAN interface down",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ifaceName(args)
			if err := canclient.SetLinkDown(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s down\n", name)
			return nil
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status [interface]",
		Short: "Print whether a CAN interface is up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ifaceName(args)
			up, err := canclient.IsLinkUp(name)
			if err != nil {
				return err
			}
			state := "down"
			if up {
				state = "up"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, state)
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set [interface]",
		Short: "Configure bitrate, restart-ms, txqueuelen or FD mode",
		Long: util.WrapString(`Applies link parameters through iproute2. Only the flags that
are given explicitly are changed. Bitrate changes usually need the link to be
down; use --cycle to take it down and bring it back up around the change.`),
		Args: cobra.MaximumNArgs(1),
		RunE: runSet,
	}
)

func init() {
	setCmd.Flags().Uint32("data-bitrate", 0, util.WrapString("CAN FD data phase bitrate in bit/s"))
	setCmd.Flags().Uint32("restart-ms", 0, util.WrapString("Automatic bus-off restart delay in milliseconds (0 disables)"))
	setCmd.Flags().Int("txqueuelen", 0, util.WrapString("Transmit queue length"))
	setCmd.Flags().Bool("cycle", false, util.WrapString("Take the link down before and up after the change"))

	LinkCommands.AddCommand(upCmd)
	LinkCommands.AddCommand(downCmd)
	LinkCommands.AddCommand(statusCmd)
	LinkCommands.AddCommand(setCmd)
}

// ifaceName takes the interface from the argument or --channel
func ifaceName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return viper.GetString("channel")
}

func runSet(cmd *cobra.Command, args []string) error {
	name := ifaceName(args)
	opts := linkOptions(cmd)

	cycle := viper.GetBool("cycle")
	if cycle {
		if err := canclient.SetLinkDown(name); err != nil {
			return err
		}
	}
	if err := canclient.ConfigureLink(name, opts); err != nil {
		return err
	}
	if cycle {
		if err := canclient.SetLinkUp(name); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s configured\n", name)
	return nil
}

// linkOptions keeps only the flags the user changed
func linkOptions(cmd *cobra.Command) canclient.LinkOptions {
	var opts canclient.LinkOptions
	flags := cmd.Flags()
	if flags.Changed("bitrate") {
		v := viper.GetUint32("bitrate")
		opts.Bitrate = &v
	}
	if flags.Changed("data-bitrate") {
		v := viper.GetUint32("data-bitrate")
		opts.DataBitrate = &v
	}
	if flags.Changed("restart-ms") {
		v := viper.GetUint32("restart-ms")
		opts.RestartMs = &v
	}
	if flags.Changed("txqueuelen") {
		v := viper.GetInt("txqueuelen")
		opts.TxQueueLen = &v
	}
	if flags.Changed("fd") {
		v := viper.GetBool("fd")
		opts.FD = &v
	}
	return opts
}
