package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sarchlab/typedcomm/comm"
	"github.com/sarchlab/typedcomm/config"
	"github.com/sarchlab/typedcomm/datarecording"
	"github.com/sarchlab/typedcomm/logging"
	"github.com/sarchlab/typedcomm/monitoring"
	"github.com/sarchlab/typedcomm/timing"
	"github.com/sarchlab/typedcomm/transport"
	"github.com/sarchlab/typedcomm/transport/inproc"
)

// A rankProgram is the body a command runs on every rank. Whatever it writes
// to out is printed once all ranks have finished, in rank order.
type rankProgram func(c *comm.Communicator, out io.Writer) error

// session holds what a run command sets up around the ranks.
type session struct {
	cfg    config.Config
	logger zerolog.Logger
	out    io.Writer
	errOut io.Writer

	monitor *monitoring.Monitor
	rec     datarecording.DataRecorder
	table   *datarecording.TimingTable
}

func openSession(cmd *cobra.Command, o *options) (*session, error) {
	cfg, err := o.settings(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	if cfg.RecordDB != "" {
		s.rec, err = datarecording.NewWithConfig(cfg.RecorderConfig())
		if err != nil {
			return nil, err
		}

		s.table = datarecording.NewTimingTable(s.rec)
	}

	if cfg.Monitor {
		s.monitor = monitoring.NewMonitor().
			WithLogger(logger).
			WithPortNumber(cfg.MonitorPort)
		if cfg.OpenBrowser {
			s.monitor.WithBrowser()
		}

		if _, err := s.monitor.StartServer(); err != nil {
			_ = s.close()
			return nil, err
		}
	}

	return s, nil
}

func (s *session) builder(t transport.Transport, args []string, out io.Writer) comm.Builder {
	b := comm.MakeBuilder().
		WithTransport(t).
		WithArgs(args).
		WithLogger(logging.ForRank(s.logger, t.Rank())).
		WithRoot(s.cfg.Root).
		WithReportWriter(out).
		WithFaultHandler(comm.ReturnFaultHandler).
		WithoutExitHandler()

	if s.cfg.Clock == config.ClockWall {
		b = b.WithClock(timing.NewWallClock())
	}

	return b
}

// run executes program on every rank of a fresh group, prints what the ranks
// wrote and records their timing under label.
func (s *session) run(label string, args []string, program rankProgram) error {
	world := inproc.NewWorld(s.cfg.Ranks)
	outputs := make([]bytes.Buffer, s.cfg.Ranks)
	reports := make([]bytes.Buffer, s.cfg.Ranks)

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar(label, uint64(s.cfg.Ranks))
		defer s.monitor.CompleteProgressBar(bar)
	}

	err := world.Run(func(t transport.Transport) error {
		rank := t.Rank()
		out := &outputs[rank]

		c, err := s.builder(t, args, out).Build()
		if err != nil {
			return err
		}

		if s.cfg.ReportFile != "" {
			c.SetReportFile(&reports[rank])
		}

		c.AcceptHook(comm.NewOpLogger(logging.ForRank(s.logger, rank)))

		if s.monitor != nil {
			s.monitor.RegisterCommunicator(c)
			bar.IncrementInProgress(1)
		}

		fmt.Fprintf(out, "Process %d/%d\n", c.Rank(), c.Size())

		err = program(c, out)

		if bar != nil {
			bar.MoveInProgressToFinished(1)
		}

		if err == nil {
			err = c.Display(label)
		}

		if err == nil && s.table != nil {
			err = c.RecordTiming(s.table, label)
		}

		return errors.Join(err, c.Close())
	})

	for i := range outputs {
		if _, werr := s.out.Write(outputs[i].Bytes()); werr != nil {
			return werr
		}
	}

	if err != nil {
		return err
	}

	if s.cfg.ReportFile != "" {
		if err := appendReports(s.cfg.ReportFile, reports); err != nil {
			return err
		}
	}

	if s.table != nil {
		return s.table.Flush()
	}

	return nil
}

func appendReports(path string, reports []bytes.Buffer) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	for i := range reports {
		if _, err := f.Write(reports[i].Bytes()); err != nil {
			_ = f.Close()
			return err
		}
	}

	return f.Close()
}

// hold keeps the monitor up until ctx is canceled.
func (s *session) hold(ctx context.Context) {
	if s.monitor == nil {
		return
	}

	fmt.Fprintln(s.errOut, "Run finished, press Ctrl+C to stop the monitor.")
	<-ctx.Done()
}

func (s *session) close() error {
	var err error

	if s.monitor != nil {
		err = s.monitor.Close()
	}

	if s.rec != nil {
		err = errors.Join(err, s.rec.Close())
	}

	return err
}

// runProgram is the RunE body shared by the demo commands.
func runProgram(
	cmd *cobra.Command,
	o *options,
	args []string,
	program rankProgram,
) error {
	s, err := openSession(cmd, o)
	if err != nil {
		return err
	}

	err = s.run(cmd.Name(), args, program)
	if err == nil {
		s.hold(cmd.Context())
	}

	return errors.Join(err, s.close())
}
