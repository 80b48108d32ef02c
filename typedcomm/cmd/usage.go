package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
)

const (
	usageTagGreeting = 0
	usageTagReply    = 2
)

func newUsageCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Rank 0 and rank 1 assemble a greeting in turns.",
		Long: "`usage` sends \"Hello\" from rank 0 to rank 1, which prints it " +
			"and answers \"world\". Rank 0 prints the answer. Other ranks " +
			"only report their timing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args, usage)
		},
	}
}

func usage(c *comm.Communicator, out io.Writer) error {
	if c.Size() < 2 {
		return fmt.Errorf("the program needs at least 2 ranks, got %d", c.Size())
	}

	switch c.Rank() {
	case 0:
		if err := c.SendString("Hello", 1, usageTagGreeting); err != nil {
			return err
		}

		msg, err := c.RecvString(1, usageTagReply)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s!\n", msg)
	case 1:
		msg, err := c.RecvString(0, usageTagGreeting)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s, \n", msg)

		if err := c.SendString("world", 0, usageTagReply); err != nil {
			return err
		}
	}

	return nil
}
