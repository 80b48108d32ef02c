package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
)

func newGatherCmd(o *options) *cobra.Command {
	var variable bool

	cmd := &cobra.Command{
		Use:   "gather",
		Short: "The root collects the rank of every rank.",
		Long: "`gather` collects one value per rank on the root. With " +
			"--variable rank r sends r+1 copies of its rank instead, which " +
			"the root places back to back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args,
				func(c *comm.Communicator, out io.Writer) error {
					if variable {
						return gatherVariable(c, out)
					}

					return gather(c, out)
				})
		},
	}

	cmd.Flags().BoolVar(&variable, "variable", false, "send a different count per rank")

	return cmd
}

func gather(c *comm.Communicator, out io.Writer) error {
	send := []int32{int32(c.Rank())}

	var recv []int32
	if c.IsRoot() {
		recv = make([]int32, c.Size())
	}

	if c.Size() == 1 {
		recv = send
	}

	if err := comm.Gather(c, send, 1, recv, 1); err != nil {
		return err
	}

	if c.IsRoot() {
		fmt.Fprintf(out, "P%d gathered %v\n", c.Rank(), recv)
	}

	return nil
}

func gatherVariable(c *comm.Communicator, out io.Writer) error {
	count := c.Rank() + 1
	send := slices.Repeat([]int32{int32(c.Rank())}, count)

	var (
		recv           []int32
		counts, displs []int
	)

	if c.IsRoot() {
		counts = make([]int, c.Size())
		displs = make([]int, c.Size())

		total := 0
		for r := range counts {
			counts[r] = r + 1
			displs[r] = total
			total += counts[r]
		}

		recv = make([]int32, total)
	}

	if c.Size() == 1 {
		recv = send
	}

	if err := comm.Gatherv(c, send, count, recv, counts, displs); err != nil {
		return err
	}

	if c.IsRoot() {
		fmt.Fprintf(out, "P%d gathered %v\n", c.Rank(), recv)
	}

	return nil
}
