package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
)

func newBcastCmd(o *options) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "bcast",
		Short: "The root broadcasts a string to every rank.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args,
				func(c *comm.Communicator, out io.Writer) error {
					return bcast(c, out, message)
				})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "Hello", "string the root broadcasts")

	return cmd
}

func bcast(c *comm.Communicator, out io.Writer, message string) error {
	var msg string
	if c.IsRoot() {
		msg = message
	}

	if err := c.BcastString(&msg); err != nil {
		return err
	}

	fmt.Fprintf(out, "P%d %s\n", c.Rank(), msg)

	return nil
}
