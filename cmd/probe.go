package cmd

import (
	"fmt"

	"github.com/notnil/canclient"
	"github.com/notnil/canclient/cmd/util"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Open the configured transport and report which one was used",
	Long: util.WrapString(`Runs transport selection exactly as send and dump do, prints the
platform, the registered bridge drivers, the candidate list and the transport
that was opened, then closes it.`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "platform:   %s\n", canclient.DetectPlatform())
		fmt.Fprintf(out, "bridges:    %v\n", canclient.Bridges())

		pol, err := util.GetPolicy()
		if err != nil {
			return err
		}
		for i, c := range pol.Candidates(canclient.DetectPlatform()) {
			fmt.Fprintf(out, "candidate %d: %s\n", i+1, c)
		}

		client, err := util.OpenClient(logger)
		if err != nil {
			return err
		}
		defer client.Stop()
		fmt.Fprintf(out, "selected:   %s (%s)\n", client.Kind(), client.Info())
		return nil
	},
}
