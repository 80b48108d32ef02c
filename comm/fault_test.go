package comm

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/hooking"
	"github.com/sarchlab/typedcomm/transport"
)

type posRecorder struct {
	positions []string
	ops       []Op
}

func (h *posRecorder) Func(ctx hooking.HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
	h.ops = append(h.ops, ctx.Item.(Op))
}

var _ = Describe("Transport faults", func() {
	var (
		mockCtrl *gomock.Controller
		t        *MockTransport
		c        *Communicator
		faults   []*TransportError
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		t = NewMockTransport(mockCtrl)
		faults = nil

		t.EXPECT().Initialized().Return(true)
		t.EXPECT().Rank().Return(1)
		t.EXPECT().Size().Return(2)

		var err error
		c, err = MakeBuilder().
			WithTransport(t).
			WithClock(&stepClock{}).
			WithFaultHandler(func(err *TransportError) {
				faults = append(faults, err)
			}).
			Adopt()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should report the rank, the operation and the diagnostic", func() {
		cause := transport.Errorf(transport.ErrRank, "rank 7 outside of group")
		t.EXPECT().
			Send(gomock.Any(), 3, datatype.Float64, 7, 5).
			Return(cause)
		t.EXPECT().ErrorString(cause).Return("invalid rank: rank 7 outside of group")

		err := Send(c, []float64{1, 2, 3}, 3, 7, 5)

		var terr *TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Rank).To(Equal(1))
		Expect(terr.Size).To(Equal(2))
		Expect(terr.Op).To(ContainSubstring(EventSend))
		Expect(terr.Diagnostic).To(Equal("invalid rank: rank 7 outside of group"))
		Expect(err).To(MatchError(ContainSubstring("rank 1/2")))
		Expect(errors.Is(err, &transport.Error{Class: transport.ErrRank})).To(BeTrue())
		Expect(faults).To(ConsistOf(terr))
	})

	It("should count and time failed calls", func() {
		cause := errors.New("link down")
		t.EXPECT().Barrier().Return(cause)
		t.EXPECT().ErrorString(cause).Return("link down")

		Expect(c.Barrier()).NotTo(Succeed())

		stat, ok := c.Timer().Event(EventBarrier)
		Expect(ok).To(BeTrue())
		Expect(stat.Calls).To(Equal(1))
		Expect(stat.Seconds).To(BeNumerically(">", 0))
		Expect(stat.Running).To(BeFalse())
	})

	It("should fire the fault hook after the end hook", func() {
		rec := &posRecorder{}
		c.AcceptHook(rec)

		cause := errors.New("bad root")
		t.EXPECT().
			Bcast(gomock.Any(), 1, datatype.Int32, 0).
			Return(cause)
		t.EXPECT().ErrorString(cause).Return("bad root")

		v := int32(3)
		Expect(Bcast(c, &v)).NotTo(Succeed())

		Expect(rec.positions).To(Equal([]string{
			HookPosOpStart.Name, HookPosOpEnd.Name, HookPosOpFault.Name,
		}))
		Expect(rec.ops[0].Event).To(Equal(EventBcast))
		Expect(rec.ops[0].Root).To(Equal(0))
	})

	It("should stop a two-phase transfer after the length fails", func() {
		cause := errors.New("peer gone")
		t.EXPECT().
			Send(gomock.Any(), 1, datatype.Int32, 0, 9+LengthTagOffset).
			Return(cause)
		t.EXPECT().ErrorString(cause).Return("peer gone")

		err := c.SendString("hello", 0, 9)

		Expect(err).To(MatchError(ContainSubstring("peer gone")))
		Expect(faults).To(HaveLen(1))
	})
})

var _ = Describe("Operations", func() {
	var (
		mockCtrl *gomock.Controller
		t        *MockTransport
		c        *Communicator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		t = NewMockTransport(mockCtrl)

		t.EXPECT().Initialized().Return(true)
		t.EXPECT().Rank().Return(0)
		t.EXPECT().Size().Return(2)

		var err error
		c, err = MakeBuilder().
			WithTransport(t).
			WithClock(&stepClock{}).
			WithFaultHandler(ReturnFaultHandler).
			Adopt()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should send the length on the next tag before the payload", func() {
		gomock.InOrder(
			t.EXPECT().
				Send(gomock.Any(), 1, datatype.Int32, 1, 4+LengthTagOffset).
				DoAndReturn(func(buf []byte, _ int, _ datatype.Datatype, _, _ int) error {
					Expect(buf).To(Equal(datatype.Bytes([]int32{5})))
					return nil
				}),
			t.EXPECT().
				Send(gomock.Any(), 5, datatype.Byte, 1, 4).
				DoAndReturn(func(buf []byte, _ int, _ datatype.Datatype, _, _ int) error {
					Expect(string(buf)).To(Equal("hello"))
					return nil
				}),
		)

		Expect(c.SendString("hello", 1, 4)).To(Succeed())

		stat, _ := c.Timer().Event(EventSend)
		Expect(stat.Calls).To(Equal(2))
	})

	It("should snapshot the operand of a reduction", func() {
		t.EXPECT().
			Allreduce(gomock.Any(), gomock.Any(), 1, datatype.Int64, transport.OpSum).
			DoAndReturn(func(send, recv []byte, _ int, _ datatype.Datatype, _ transport.Op) error {
				Expect(&send[0]).NotTo(BeIdenticalTo(&recv[0]))
				copy(recv, datatype.Bytes([]int64{10}))
				return nil
			})

		v := int64(4)
		Expect(AllreduceSum(c, &v)).To(Succeed())
		Expect(v).To(Equal(int64(10)))
	})

	It("should keep the reduction operand until the request is waited for", func() {
		handle := NewMockRequest(mockCtrl)
		t.EXPECT().
			Iallreduce(gomock.Any(), gomock.Any(), 1, datatype.Float32, transport.OpSum).
			Return(handle, nil)
		handle.EXPECT().Completed().Return(false)
		t.EXPECT().Wait(handle).Return(nil)

		v := float32(1.5)
		req, err := IallreduceSum(c, &v)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.ID()).NotTo(BeEmpty())
		Expect(req.Op().Event).To(Equal(EventIallreduceSum))
		Expect(req.Test()).To(BeFalse())
		Expect(req.keep).NotTo(BeNil())

		Expect(c.Wait(req)).To(Succeed())
		Expect(req.Test()).To(BeTrue())
		Expect(req.keep).To(BeNil())

		Expect(c.Wait(req)).To(Succeed())
	})

	It("should wait for all live requests at once", func() {
		h1 := NewMockRequest(mockCtrl)
		h2 := NewMockRequest(mockCtrl)
		t.EXPECT().Isend(gomock.Any(), 2, datatype.Int32, 1, 0).Return(h1, nil)
		t.EXPECT().Irecv(gomock.Any(), 2, datatype.Int32, 1, 0).Return(h2, nil)
		t.EXPECT().Waitall([]transport.Request{h1, h2}).Return(nil)

		out := []int32{1, 2}
		in := make([]int32, 2)
		r1, err := Isend(c, out, 2, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		r2, err := Irecv(c, in, 2, 1, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Waitall(r1, nil, r2)).To(Succeed())

		stat, _ := c.Timer().Event(EventWaitall)
		Expect(stat.Calls).To(Equal(1))
	})

	It("should gather with the current root", func() {
		Expect(c.SetRoot(1)).To(Succeed())
		t.EXPECT().
			Gatherv(gomock.Any(), 2, gomock.Any(), []int{2, 1}, []int{0, 2}, datatype.Bool, 1).
			Return(nil)

		Expect(Gatherv(c, []bool{true, false}, 2, nil, []int{2, 1}, []int{0, 2})).
			To(Succeed())
	})

	It("should not time anything while timing is disabled", func() {
		c.Timer().SetEnabled(false)
		t.EXPECT().Barrier().Return(nil)

		Expect(c.Barrier()).To(Succeed())

		Expect(c.Timer().Snapshot()).To(BeEmpty())
	})
})

var _ = Describe("Single-rank group", func() {
	var (
		mockCtrl *gomock.Controller
		c        *Communicator
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		t := NewMockTransport(mockCtrl)

		// Any transport call other than these fails the test.
		t.EXPECT().Initialized().Return(true)
		t.EXPECT().Rank().Return(0)
		t.EXPECT().Size().Return(1)

		var err error
		c, err = MakeBuilder().WithTransport(t).WithClock(&stepClock{}).Adopt()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not touch the buffers", func() {
		buf := []int64{1, 2, 3}
		Expect(Send(c, buf, 3, 0, 0)).To(Succeed())
		Expect(Recv(c, buf, 3, 0, 0)).To(Succeed())
		Expect(buf).To(Equal([]int64{1, 2, 3}))

		v := 7.5
		Expect(Bcast(c, &v)).To(Succeed())
		Expect(AllreduceSum(c, &v)).To(Succeed())
		Expect(v).To(Equal(7.5))

		recv := []int64{0, 0, 0}
		Expect(Gather(c, buf, 3, recv, 3)).To(Succeed())
		Expect(recv).To(Equal([]int64{0, 0, 0}))

		s := "kept"
		Expect(c.BcastString(&s)).To(Succeed())
		Expect(s).To(Equal("kept"))
	})

	It("should hand out completed requests", func() {
		req, err := Isend(c, []int32{1}, 1, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Test()).To(BeTrue())

		v := uint(3)
		red, err := IallreduceSum(c, &v)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Wait(req)).To(Succeed())
		Expect(c.Waitall(req, red)).To(Succeed())
		Expect(c.Barrier()).To(Succeed())
		Expect(v).To(Equal(uint(3)))
	})

	It("should not record operation timings", func() {
		Expect(c.Barrier()).To(Succeed())

		Expect(c.Timer().Snapshot()).To(BeEmpty())
	})
})
