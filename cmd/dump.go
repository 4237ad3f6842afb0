package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/notnil/canclient"
	"github.com/notnil/canclient/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// pollInterval bounds each Receive so the loop notices interrupts
const pollInterval = 200 * time.Millisecond

var (
	idColor   = color.New(color.FgCyan, color.Bold)
	flagColor = color.New(color.FgYellow)
	timeColor = color.New(color.Faint)

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Print received frames",
		Long: util.WrapString(`Receive frames and print them in candump style until
interrupted, until --count frames were printed or until no frame arrived
for --timeout.`),
		Args: cobra.NoArgs,
		RunE: runDump,
	}
)

func init() {
	dumpCmd.Flags().Duration("timeout", 0, util.WrapString("Stop after this long without a frame (0 waits forever)"))
	dumpCmd.Flags().Int("count", 0, util.WrapString("Stop after this many frames (0 is unlimited)"))
	dumpCmd.Flags().StringSlice("id", nil, util.WrapString("Only print frames with these hex identifiers (repeatable)"))
	dumpCmd.Flags().StringSlice("range", nil, util.WrapString("Only print identifiers in this inclusive hex range, e.g. 100-1FF (repeatable)"))
	dumpCmd.Flags().StringSlice("mask", nil, util.WrapString("Only print identifiers matching <id>:<mask> in hex, as candump filters (repeatable)"))
	dumpCmd.Flags().StringSlice("exclude", nil, util.WrapString("Never print these hex identifiers (repeatable)"))
	dumpCmd.Flags().String("only", "", util.WrapString("Only print one frame class: standard, extended, fd, rtr or data"))
	dumpCmd.Flags().Int("len", 0, util.WrapString("Only print frames with exactly this many data bytes"))
	dumpCmd.Flags().Bool("no-color", false, util.WrapString("Disable coloured output"))
}

func runDump(cmd *cobra.Command, _ []string) error {
	spec := util.FilterSpec{
		IDs:     viper.GetStringSlice("id"),
		Ranges:  viper.GetStringSlice("range"),
		Masks:   viper.GetStringSlice("mask"),
		Exclude: viper.GetStringSlice("exclude"),
		Only:    viper.GetString("only"),
	}
	if cmd.Flags().Changed("len") {
		n := viper.GetInt("len")
		spec.Len = &n
	}
	filter, err := util.BuildFilter(spec)
	if err != nil {
		return err
	}
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
	idle := viper.GetDuration("timeout")
	limit := viper.GetInt("count")

	client, err := util.OpenClient(logger)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	printed := 0
	last := time.Now()
	for ctx.Err() == nil {
		f, ok, err := client.Receive(pollInterval)
		if err != nil {
			return err
		}
		if !ok {
			if idle > 0 && time.Since(last) >= idle {
				logger.Info("no frames received", "timeout", idle)
				return nil
			}
			continue
		}
		last = time.Now()
		if filter != nil && !filter(f) {
			continue
		}
		printFrame(out, client.Info(), f)
		printed++
		if limit > 0 && printed >= limit {
			return nil
		}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func printFrame(w io.Writer, channel string, f canclient.Frame) {
	ts, ok := f.Timestamp()
	if !ok {
		ts = time.Now()
	}
	id := fmt.Sprintf("%03X", f.ID())
	if f.IsExtended() {
		id = fmt.Sprintf("%08X", f.ID())
	}
	var flags string
	switch {
	case f.IsFD():
		flags = fmt.Sprintf("[%02d]", f.Len())
	case f.IsRTR():
		flags = "RTR"
	default:
		flags = fmt.Sprintf("[%d]", f.Len())
	}
	fmt.Fprintf(w, "%s  %s  %s  %s", timeColor.Sprint(ts.Format("15:04:05.000000")), channel, idColor.Sprint(id), flagColor.Sprint(flags))
	if !f.IsRTR() {
		for _, b := range f.Data() {
			fmt.Fprintf(w, " %02X", b)
		}
	}
	fmt.Fprintln(w)
}
