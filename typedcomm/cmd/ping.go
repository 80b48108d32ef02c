package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
)

const pingTag = 1

var errNeedTwoRanks = errors.New("the program needs exactly 2 ranks")

func newPingCmd(o *options) *cobra.Command {
	var greeting, reply string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Two ranks exchange a string with each other.",
		Long: "`ping` runs on exactly two ranks. Each rank sends its string to " +
			"the other one and then receives the other's string.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args,
				func(c *comm.Communicator, out io.Writer) error {
					return ping(c, out, greeting, reply)
				})
		},
	}

	cmd.Flags().StringVar(&greeting, "greeting", "Hello", "string the root sends")
	cmd.Flags().StringVar(&reply, "reply", "world!", "string the other rank sends")

	return cmd
}

func ping(c *comm.Communicator, out io.Writer, greeting, reply string) error {
	if c.Size() != 2 {
		return errNeedTwoRanks
	}

	sent, other := reply, 1-c.Rank()
	if c.IsRoot() {
		sent = greeting
	}

	if err := c.SendString(sent, other, pingTag); err != nil {
		return err
	}

	received, err := c.RecvString(other, pingTag)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "P%d %s %s\n", c.Rank(), sent, received)

	return nil
}
