package comm

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Communicator", func() {
	var (
		mockCtrl *gomock.Controller
		t        *MockTransport
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		t = NewMockTransport(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("when built", func() {
		It("should initialize the transport with the launch arguments", func() {
			t.EXPECT().Init([]string{"-v", "input"}).Return(nil)
			t.EXPECT().Rank().Return(2)
			t.EXPECT().Size().Return(4)

			c, err := MakeBuilder().
				WithTransport(t).
				WithArgs([]string{"-v", "input"}).
				WithoutExitHandler().
				Build()

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Rank()).To(Equal(2))
			Expect(c.Size()).To(Equal(4))
			Expect(c.Root()).To(Equal(0))
			Expect(c.IsRoot()).To(BeFalse())
			Expect(c.Owned()).To(BeTrue())
			Expect(c.Transport()).To(BeIdenticalTo(t))
		})

		It("should fail when the transport cannot initialize", func() {
			t.EXPECT().Init(gomock.Nil()).Return(errors.New("no fabric"))

			_, err := MakeBuilder().WithTransport(t).WithoutExitHandler().Build()

			Expect(err).To(MatchError(ContainSubstring("no fabric")))
		})

		It("should finalize the transport when the root is out of range", func() {
			t.EXPECT().Init(gomock.Nil()).Return(nil)
			t.EXPECT().Rank().Return(0)
			t.EXPECT().Size().Return(2)
			t.EXPECT().Finalize().Return(nil)

			_, err := MakeBuilder().
				WithTransport(t).
				WithRoot(2).
				WithoutExitHandler().
				Build()

			Expect(err).To(MatchError(ErrInvalidRoot))
		})

		It("should require a transport", func() {
			_, err := MakeBuilder().Build()

			Expect(err).To(HaveOccurred())
		})

		It("should finalize only once", func() {
			t.EXPECT().Init(gomock.Nil()).Return(nil)
			t.EXPECT().Rank().Return(0)
			t.EXPECT().Size().Return(2)
			t.EXPECT().Finalize().Return(nil).Times(1)

			c, err := MakeBuilder().WithTransport(t).WithoutExitHandler().Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Close()).To(Succeed())
			Expect(c.Close()).To(Succeed())
		})

		It("should refuse operations after close", func() {
			t.EXPECT().Init(gomock.Nil()).Return(nil)
			t.EXPECT().Rank().Return(0)
			t.EXPECT().Size().Return(2)
			t.EXPECT().Finalize().Return(nil)

			c, err := MakeBuilder().WithTransport(t).WithoutExitHandler().Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Close()).To(Succeed())

			Expect(c.Barrier()).To(MatchError(ErrClosed))
		})
	})

	Context("when adopting a transport", func() {
		It("should derive rank and size without initializing", func() {
			t.EXPECT().Initialized().Return(true)
			t.EXPECT().Rank().Return(1)
			t.EXPECT().Size().Return(3)

			c, err := Wrap(t)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Rank()).To(Equal(1))
			Expect(c.Size()).To(Equal(3))
			Expect(c.Root()).To(Equal(0))
			Expect(c.Owned()).To(BeFalse())
		})

		It("should never finalize the transport", func() {
			t.EXPECT().Initialized().Return(true)
			t.EXPECT().Rank().Return(0)
			t.EXPECT().Size().Return(3)

			c, err := Wrap(t)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Close()).To(Succeed())
		})

		It("should reject a transport that is not initialized", func() {
			t.EXPECT().Initialized().Return(false)

			_, err := Wrap(t)

			Expect(err).To(HaveOccurred())
		})
	})

	Context("when changing the root", func() {
		var c *Communicator

		BeforeEach(func() {
			t.EXPECT().Initialized().Return(true)
			t.EXPECT().Rank().Return(1)
			t.EXPECT().Size().Return(3)

			var err error
			c, err = Wrap(t)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept a rank of the group", func() {
			Expect(c.SetRoot(1)).To(Succeed())
			Expect(c.Root()).To(Equal(1))
			Expect(c.IsRoot()).To(BeTrue())
		})

		It("should reject ranks outside the group", func() {
			Expect(c.SetRoot(3)).To(MatchError(ErrInvalidRoot))
			Expect(c.SetRoot(-1)).To(MatchError(ErrInvalidRoot))
			Expect(c.Root()).To(Equal(0))
		})
	})

	Context("when reporting", func() {
		It("should write the report to the primary writer and the mirror", func() {
			t.EXPECT().Initialized().Return(true)
			t.EXPECT().Rank().Return(0)
			t.EXPECT().Size().Return(1)

			var primary, mirror bytes.Buffer
			c, err := MakeBuilder().
				WithTransport(t).
				WithClock(&stepClock{}).
				WithReportWriter(&primary).
				Adopt()
			Expect(err).NotTo(HaveOccurred())

			c.SetReportFile(&mirror)
			c.Time("solve")
			c.Time("solve")

			Expect(c.Display("step 1")).To(Succeed())
			Expect(primary.String()).To(ContainSubstring("solve"))
			Expect(primary.String()).To(ContainSubstring("using step  step 1"))
			Expect(mirror.String()).To(Equal(primary.String()))
		})
	})
})
