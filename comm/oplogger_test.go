package comm

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/timing"
)

type fakeRecorder struct {
	label      string
	rank, size int
	stats      []timing.EventStat
}

func (r *fakeRecorder) RecordTiming(label string, rank, size int, stats []timing.EventStat) error {
	r.label, r.rank, r.size, r.stats = label, rank, size, stats
	return nil
}

var _ = Describe("OpLogger", func() {
	var (
		mockCtrl *gomock.Controller
		t        *MockTransport
		c        *Communicator
		out      bytes.Buffer
	)

	BeforeEach(func() {
		out.Reset()
		mockCtrl = gomock.NewController(GinkgoT())
		t = NewMockTransport(mockCtrl)

		t.EXPECT().Initialized().Return(true)
		t.EXPECT().Rank().Return(1)
		t.EXPECT().Size().Return(2)

		var err error
		c, err = MakeBuilder().
			WithTransport(t).
			WithClock(&stepClock{}).
			WithFaultHandler(ReturnFaultHandler).
			Adopt()
		Expect(err).NotTo(HaveOccurred())

		c.AcceptHook(NewOpLogger(zerolog.New(&out).Level(zerolog.DebugLevel)))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should trace the start and the end of an operation", func() {
		t.EXPECT().Recv(gomock.Any(), 4, datatype.Float32, 0, 8).Return(nil)

		Expect(Recv(c, make([]float32, 4), 4, 0, 8)).To(Succeed())

		Expect(out.String()).To(ContainSubstring(`"pos":"OpStart"`))
		Expect(out.String()).To(ContainSubstring(`"pos":"OpEnd"`))
		Expect(out.String()).To(ContainSubstring(`"rank":1`))
		Expect(out.String()).To(ContainSubstring("comm.Recv(count=4, datatype=float32, peer=0, tag=8)"))
	})

	It("should warn about faults", func() {
		cause := errors.New("gone")
		t.EXPECT().Barrier().Return(cause)
		t.EXPECT().ErrorString(cause).Return("gone")

		Expect(c.Barrier()).NotTo(Succeed())

		Expect(out.String()).To(ContainSubstring(`"level":"warn"`))
		Expect(out.String()).To(ContainSubstring(`"pos":"OpFault"`))
	})

	It("should hand the timing snapshot to a recorder", func() {
		t.EXPECT().Barrier().Return(nil)
		Expect(c.Barrier()).To(Succeed())

		rec := &fakeRecorder{}
		Expect(c.RecordTiming(rec, "phase")).To(Succeed())

		Expect(rec.label).To(Equal("phase"))
		Expect(rec.rank).To(Equal(1))
		Expect(rec.size).To(Equal(2))
		Expect(rec.stats).To(HaveLen(1))
		Expect(rec.stats[0].Name).To(Equal(EventBarrier))
	})
})
