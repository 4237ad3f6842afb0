package cmd

import (
	"fmt"

	"github.com/notnil/canclient"
	"github.com/notnil/canclient/cmd/util"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <frame>...",
	Short: "Send one or more frames",
	Long: `Send frames in cansend syntax:

  123#DEADBEEF        standard ID, classic data frame
  12345678#11.22      extended ID (eight hex digits)
  123#R               remote transmission request
  123##1001122        CAN FD frame (flags nibble, then data); needs --fd`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames := make([]canclient.Frame, 0, len(args))
		for _, arg := range args {
			f, err := util.ParseFrame(arg)
			if err != nil {
				return err
			}
			frames = append(frames, f)
		}

		client, err := util.OpenClient(logger)
		if err != nil {
			return err
		}
		defer client.Stop()

		for _, f := range frames {
			if err := client.Send(f); err != nil {
				return fmt.Errorf("send %s: %w", f, err)
			}
		}
		logger.Info("frames sent", "count", len(frames), "transport", client.Info())
		return nil
	},
}
