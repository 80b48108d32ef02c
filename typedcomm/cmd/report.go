package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/datarecording"
)

func newReportCmd(_ *options) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "report <database.sqlite3>",
		Short: "Print the timing recorded in a SQLite database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}

			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			rows, err := datarecording.ReadTiming(cmd.Context(), reader, label)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tRANK\tSIZE\tEVENT\tCALLS\tSECONDS")

			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%.5g\n",
					r.Label, r.Rank, r.Size, r.Event, r.Calls, r.Seconds)
			}

			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "only print rows recorded under this label")

	return cmd
}
