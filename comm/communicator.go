package comm

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/typedcomm/hooking"
	"github.com/sarchlab/typedcomm/timing"
	"github.com/sarchlab/typedcomm/transport"
)

// Communicator is a typed, timed view of a transport process group.
//
// A Communicator is not safe for concurrent use. Goroutines sharing one must
// serialize their calls.
type Communicator struct {
	*hooking.HookableBase

	transport transport.Transport
	rank      int
	size      int
	root      int

	timer   *timing.Registry
	logger  zerolog.Logger
	onFault FaultHandler

	owned     bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Builder configures and creates Communicators.
type Builder struct {
	transport      transport.Transport
	args           []string
	logger         zerolog.Logger
	clock          timing.Clock
	onFault        FaultHandler
	root           int
	reportWriter   io.Writer
	timingDisabled bool
	noExitHandler  bool
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		logger:  zerolog.Nop(),
		onFault: FatalFaultHandler,
	}
}

// WithTransport sets the transport the Communicator drives.
func (b Builder) WithTransport(t transport.Transport) Builder {
	b.transport = t
	return b
}

// WithArgs sets the launch arguments forwarded to the transport on Build.
func (b Builder) WithArgs(args []string) Builder {
	b.args = args
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = l
	return b
}

// WithClock sets the clock of the timing registry. The default reads the
// transport's own clock.
func (b Builder) WithClock(c timing.Clock) Builder {
	b.clock = c
	return b
}

// WithFaultHandler sets what happens on a transport fault. The default is
// FatalFaultHandler.
func (b Builder) WithFaultHandler(h FaultHandler) Builder {
	b.onFault = h
	return b
}

// WithRoot sets the initial root rank.
func (b Builder) WithRoot(root int) Builder {
	b.root = root
	return b
}

// WithReportWriter sets where Display writes the timing report. The default
// is standard output.
func (b Builder) WithReportWriter(w io.Writer) Builder {
	b.reportWriter = w
	return b
}

// WithTimingDisabled turns off event timing.
func (b Builder) WithTimingDisabled() Builder {
	b.timingDisabled = true
	return b
}

// WithoutExitHandler stops Build from registering the finalization of the
// transport as an exit handler.
func (b Builder) WithoutExitHandler() Builder {
	b.noExitHandler = true
	return b
}

// Build initializes the transport and returns a Communicator that owns it.
// Closing the Communicator finalizes the transport.
func (b Builder) Build() (*Communicator, error) {
	if b.transport == nil {
		return nil, errors.New("comm: no transport")
	}

	if err := b.transport.Init(b.args); err != nil {
		return nil, fmt.Errorf("comm: initializing transport: %w", err)
	}

	c, err := b.assemble(true)
	if err != nil {
		_ = b.transport.Finalize()
		return nil, err
	}

	if !b.noExitHandler {
		atexit.Register(func() { _ = c.Close() })
	}

	c.logger.Debug().Int("rank", c.rank).Int("size", c.size).Msg("transport initialized")

	return c, nil
}

// Adopt wraps a transport that is already initialized. The Communicator
// uses root 0 unless configured otherwise and never finalizes the transport.
func (b Builder) Adopt() (*Communicator, error) {
	if b.transport == nil {
		return nil, errors.New("comm: no transport")
	}

	if !b.transport.Initialized() {
		return nil, errors.New("comm: adopted transport is not initialized")
	}

	return b.assemble(false)
}

func (b Builder) assemble(owned bool) (*Communicator, error) {
	rank, size := b.transport.Rank(), b.transport.Size()
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("comm: transport reports rank %d of size %d", rank, size)
	}

	if b.root < 0 || b.root >= size {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRoot, b.root)
	}

	clock := b.clock
	if clock == nil {
		clock = timing.TransportClock{Source: b.transport}
	}

	timer := timing.NewRegistry(clock)
	if b.reportWriter != nil {
		timer.SetOutput(b.reportWriter)
	}

	timer.SetEnabled(!b.timingDisabled)

	onFault := b.onFault
	if onFault == nil {
		onFault = FatalFaultHandler
	}

	return &Communicator{
		HookableBase: hooking.NewHookableBase(),
		transport:    b.transport,
		rank:         rank,
		size:         size,
		root:         b.root,
		timer:        timer,
		logger:       b.logger,
		onFault:      onFault,
		owned:        owned,
	}, nil
}

// New initializes t and returns a Communicator with default settings.
func New(t transport.Transport) (*Communicator, error) {
	return MakeBuilder().WithTransport(t).Build()
}

// NewWithArgs initializes t with the launch arguments.
func NewWithArgs(t transport.Transport, args []string) (*Communicator, error) {
	return MakeBuilder().WithTransport(t).WithArgs(args).Build()
}

// Wrap adopts an initialized transport with default settings.
func Wrap(t transport.Transport) (*Communicator, error) {
	return MakeBuilder().WithTransport(t).Adopt()
}

// Rank returns the rank of this process in the group.
func (c *Communicator) Rank() int {
	return c.rank
}

// Size returns the number of processes in the group.
func (c *Communicator) Size() int {
	return c.size
}

// Root returns the rank that originates broadcasts and collects gathers.
func (c *Communicator) Root() int {
	return c.root
}

// IsRoot reports whether this process is the root.
func (c *Communicator) IsRoot() bool {
	return c.rank == c.root
}

// SetRoot changes the root for the collectives issued after the call. All
// ranks must agree on the root.
func (c *Communicator) SetRoot(root int) error {
	if root < 0 || root >= c.size {
		return fmt.Errorf("%w: %d", ErrInvalidRoot, root)
	}

	c.root = root

	return nil
}

// Transport returns the underlying transport.
func (c *Communicator) Transport() transport.Transport {
	return c.transport
}

// Timer returns the timing registry of the Communicator.
func (c *Communicator) Timer() *timing.Registry {
	return c.timer
}

// Owned reports whether the Communicator initialized its transport and will
// finalize it.
func (c *Communicator) Owned() bool {
	return c.owned
}

// Close finalizes the transport if the Communicator owns it. Only the first
// call has an effect.
func (c *Communicator) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true

		if !c.owned {
			return
		}

		c.closeErr = c.transport.Finalize()
		if c.closeErr != nil {
			c.logger.Error().Err(c.closeErr).Int("rank", c.rank).Msg("finalizing transport")
			return
		}

		c.logger.Debug().Int("rank", c.rank).Msg("transport finalized")
	})

	return c.closeErr
}
