package config_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/typedcomm/config"
	"github.com/sarchlab/typedcomm/datarecording"
)

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should keep defaults for keys missing from the file", func() {
		path := writeFile(dir, "run.toml", "ranks = 4\nclock = \"wall\"\n")

		cfg, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Ranks).To(Equal(4))
		Expect(cfg.Clock).To(Equal(config.ClockWall))
		Expect(cfg.LogLevel).To(Equal("info"))
		Expect(cfg.RecordBackend).To(Equal(datarecording.BackendSQLite))
	})

	It("should reject unknown keys", func() {
		path := writeFile(dir, "run.toml", "rank = 4\n")

		_, err := config.Load(path)

		Expect(err).To(MatchError(ContainSubstring(`unknown key "rank"`)))
	})

	It("should fail on a missing file", func() {
		_, err := config.Load(filepath.Join(dir, "none.toml"))

		Expect(err).To(HaveOccurred())
	})

	It("should let the environment override the file and the dotenv file", func() {
		path := writeFile(dir, "run.toml", "ranks = 4\nroot = 1\nmonitor_port = 8000\n")
		dotenv := writeFile(dir, ".env",
			"TYPEDCOMM_RANKS=8\nTYPEDCOMM_LOG_LEVEL=debug\nTYPEDCOMM_MONITOR=true\n")
		GinkgoT().Setenv("TYPEDCOMM_RANKS", "6")

		cfg, err := config.Resolve(path, dotenv, filepath.Join(dir, "missing.env"))

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Ranks).To(Equal(6))
		Expect(cfg.Root).To(Equal(1))
		Expect(cfg.LogLevel).To(Equal("debug"))
		Expect(cfg.Monitor).To(BeTrue())
		Expect(cfg.MonitorPort).To(Equal(8000))
	})

	It("should report malformed variables", func() {
		cfg := config.Default()

		err := cfg.ApplyEnv(func(key string) (string, bool) {
			if key == "TYPEDCOMM_MONITOR_PORT" {
				return "eighty", true
			}
			return "", false
		})

		Expect(err).To(MatchError(ContainSubstring("TYPEDCOMM_MONITOR_PORT")))
	})

	DescribeTable("validation",
		func(mutate func(*config.Config), valid bool) {
			cfg := config.Default()
			mutate(&cfg)

			if valid {
				Expect(cfg.Validate()).To(Succeed())
			} else {
				Expect(cfg.Validate()).NotTo(Succeed())
			}
		},
		Entry("defaults", func(*config.Config) {}, true),
		Entry("no ranks", func(c *config.Config) { c.Ranks = 0 }, false),
		Entry("root outside", func(c *config.Config) { c.Root = 2 }, false),
		Entry("bad port", func(c *config.Config) { c.MonitorPort = 70000 }, false),
		Entry("bad clock", func(c *config.Config) { c.Clock = "tsc" }, false),
		Entry("bad backend", func(c *config.Config) { c.RecordBackend = "csv" }, false),
		Entry("clickhouse", func(c *config.Config) {
			c.RecordBackend = datarecording.BackendClickHouse
		}, true),
	)

	It("should route the record target by backend", func() {
		cfg := config.Default()
		cfg.RecordDB = "clickhouse://localhost:9000/runs"

		Expect(cfg.RecorderConfig().Path).To(Equal("clickhouse://localhost:9000/runs"))

		cfg.RecordBackend = datarecording.BackendClickHouse
		rc := cfg.RecorderConfig()
		Expect(rc.ConnStr).To(Equal("clickhouse://localhost:9000/runs"))
		Expect(rc.Path).To(BeEmpty())
	})

	It("should write a file that loads back", func() {
		cfg := config.Default()
		cfg.Ranks = 3
		cfg.ReportFile = "timing.txt"

		var buf bytes.Buffer
		Expect(cfg.Write(&buf)).To(Succeed())

		loaded, err := config.Load(writeFile(dir, "out.toml", buf.String()))
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(cfg))
	})
})
