package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
)

func newReduceCmd(o *options) *cobra.Command {
	var nonBlocking bool

	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Every rank contributes rank+1 to a global sum.",
		Long: "`reduce` sums rank+1 over all ranks as an integer and as a " +
			"floating point value. With --nonblocking the sums are started " +
			"together and waited for with a single Waitall.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, o, args,
				func(c *comm.Communicator, out io.Writer) error {
					if nonBlocking {
						return reduceNonBlocking(c, out)
					}

					return reduce(c, out)
				})
		},
	}

	cmd.Flags().BoolVar(&nonBlocking, "nonblocking", false, "use the non-blocking sum")

	return cmd
}

func reduce(c *comm.Communicator, out io.Writer) error {
	n := int64(c.Rank() + 1)
	x := float64(c.Rank()+1) / 2

	if err := comm.AllreduceSum(c, &n); err != nil {
		return err
	}

	if err := comm.AllreduceSum(c, &x); err != nil {
		return err
	}

	fmt.Fprintf(out, "P%d sum %d %g\n", c.Rank(), n, x)

	return nil
}

func reduceNonBlocking(c *comm.Communicator, out io.Writer) error {
	n := int64(c.Rank() + 1)
	x := float64(c.Rank()+1) / 2

	c.Time("overlap")

	reqN, err := comm.IallreduceSum(c, &n)
	if err != nil {
		return err
	}

	reqX, err := comm.IallreduceSum(c, &x)
	if err != nil {
		return err
	}

	if err := c.Waitall(reqN, reqX); err != nil {
		return err
	}

	c.Time("overlap")

	fmt.Fprintf(out, "P%d sum %d %g\n", c.Rank(), n, x)

	return nil
}
