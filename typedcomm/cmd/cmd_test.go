package cmd

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Commands", func() {
	var dir string

	execute := func(args ...string) (string, error) {
		root := newRootCmd()

		var out, errOut bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs(append(args,
			"--env-file", filepath.Join(dir, "missing.env"),
			"--log-level", "warn"))

		err := root.Execute()

		return out.String(), err
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Context("ping", func() {
		It("should exchange strings between two ranks", func() {
			out, err := execute("ping", "--np", "2")

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Process 0/2\nP0 Hello world!\n"))
			Expect(out).To(ContainSubstring("Process 1/2\nP1 world! Hello\n"))
			Expect(out).To(ContainSubstring("comm.Send"))
			Expect(out).To(ContainSubstring("comm.Recv"))
		})

		It("should let the root send the greeting", func() {
			out, err := execute("ping", "--np", "2", "--root", "1",
				"--greeting", "Hi", "--reply", "there")

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("P0 there Hi\n"))
			Expect(out).To(ContainSubstring("P1 Hi there\n"))
		})

		It("should refuse other group sizes", func() {
			_, err := execute("ping", "--np", "3")

			Expect(err).To(MatchError(errNeedTwoRanks))
		})
	})

	It("should broadcast from the root", func() {
		out, err := execute("bcast", "--np", "4", "--root", "2", "-m", "hey")

		Expect(err).NotTo(HaveOccurred())
		for _, line := range []string{"P0 hey\n", "P1 hey\n", "P2 hey\n", "P3 hey\n"} {
			Expect(out).To(ContainSubstring(line))
		}
		Expect(out).To(ContainSubstring("comm.Bcast"))
	})

	It("should run on a single rank", func() {
		out, err := execute("bcast", "--np", "1")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Process 0/1\nP0 Hello\n"))
		Expect(out).NotTo(ContainSubstring("comm.Bcast"))
	})

	DescribeTable("reduce",
		func(extra ...string) {
			out, err := execute(append([]string{"reduce", "--np", "4"}, extra...)...)

			Expect(err).NotTo(HaveOccurred())
			for _, line := range []string{
				"P0 sum 10 5\n", "P1 sum 10 5\n", "P2 sum 10 5\n", "P3 sum 10 5\n",
			} {
				Expect(out).To(ContainSubstring(line))
			}
		},
		Entry("blocking"),
		Entry("non-blocking", "--nonblocking"),
	)

	It("should time the overlap of the non-blocking sums", func() {
		out, err := execute("reduce", "--np", "2", "--nonblocking")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("overlap"))
		Expect(out).To(ContainSubstring("comm.IallreduceSum"))
		Expect(out).To(ContainSubstring("comm.Waitall"))
	})

	DescribeTable("gather",
		func(want string, extra ...string) {
			out, err := execute(append([]string{"gather", "--np", "3"}, extra...)...)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(want))
			Expect(out).NotTo(ContainSubstring("P1 gathered"))
		},
		Entry("fixed count", "P0 gathered [0 1 2]\n"),
		Entry("variable count", "P0 gathered [0 1 1 2 2 2]\n", "--variable"),
	)

	Context("usage", func() {
		It("should assemble the greeting", func() {
			out, err := execute("usage", "--np", "3")

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Process 0/3\nworld!\n"))
			Expect(out).To(ContainSubstring("Process 1/3\nHello, \n"))
			Expect(out).To(ContainSubstring("Process 2/3\n"))
		})

		It("should fail on a single rank", func() {
			_, err := execute("usage", "--np", "1")

			Expect(err).To(MatchError(ContainSubstring("at least 2 ranks")))
		})
	})

	It("should append the reports to the report file", func() {
		path := filepath.Join(dir, "report.txt")

		_, err := execute("bcast", "--np", "2", "--report", path, "--clock", "wall")
		Expect(err).NotTo(HaveOccurred())
		_, err = execute("bcast", "--np", "2", "--report", path)
		Expect(err).NotTo(HaveOccurred())

		content, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.Count(content, []byte("using wall_clock  bcast"))).To(Equal(2))
		Expect(bytes.Count(content, []byte("using transport_wtime  bcast"))).To(Equal(2))
	})

	It("should record the timing and print it back", func() {
		db := filepath.Join(dir, "run")

		_, err := execute("reduce", "--np", "2", "--db", db)
		Expect(err).NotTo(HaveOccurred())

		out, err := execute("report", db+".sqlite3", "--label", "reduce")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("LABEL"))
		Expect(out).To(MatchRegexp(`reduce\s+0\s+2\s+comm\.AllreduceSum\s+2\s`))
		Expect(out).To(MatchRegexp(`reduce\s+1\s+2\s+comm\.AllreduceSum\s+2\s`))
	})

	It("should fail to report a missing database", func() {
		_, err := execute("report", filepath.Join(dir, "nothing.sqlite3"))

		Expect(err).To(HaveOccurred())
	})

	Context("config", func() {
		It("should apply flags over the settings file", func() {
			path := filepath.Join(dir, "run.toml")
			Expect(os.WriteFile(path,
				[]byte("ranks = 3\nroot = 2\nclock = \"wall\"\n"), 0o644)).To(Succeed())

			out, err := execute("config", "--config", path, "--np", "5")

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("ranks = 5"))
			Expect(out).To(ContainSubstring("root = 2"))
			Expect(out).To(ContainSubstring(`clock = "wall"`))
		})

		It("should reject invalid settings", func() {
			_, err := execute("config", "--np", "2", "--root", "2")

			Expect(err).To(MatchError(ContainSubstring("root 2 outside")))
		})
	})
})
