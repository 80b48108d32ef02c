// Package cmd provides the command-line interface for typedcomm.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/typedcomm/config"
)

// options holds the persistent flags of a command tree.
type options struct {
	configFile  string
	dotenv      string
	np          int
	root        int
	report      string
	db          string
	backend     string
	monitor     bool
	monitorPort int
	openBrowser bool
	logLevel    string
	clock       string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use: "typedcomm",
		Short: "typedcomm runs small message-passing programs on an " +
			"in-process group of ranks.",
		Long: `typedcomm runs small message-passing programs on an ` +
			`in-process group of ranks and reports how long every ` +
			`communication call took on each rank.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "TOML settings file")
	f.StringVar(&o.dotenv, "env-file", ".env", "dotenv file with TYPEDCOMM_* variables")
	f.IntVarP(&o.np, "np", "n", 0, "number of ranks")
	f.IntVar(&o.root, "root", 0, "root rank of collectives")
	f.StringVar(&o.report, "report", "", "file the timing reports are appended to")
	f.StringVar(&o.db, "db", "", "database the timing tables are recorded into")
	f.StringVar(&o.backend, "backend", "", "recording backend: sqlite, sqlite-pure or clickhouse")
	f.BoolVar(&o.monitor, "monitor", false, "serve the HTTP monitor while running")
	f.IntVar(&o.monitorPort, "monitor-port", 0, "port of the monitor, 0 for a random one")
	f.BoolVar(&o.openBrowser, "open-browser", false, "open the monitor in a browser")
	f.StringVar(&o.logLevel, "log-level", "", "log level")
	f.StringVar(&o.clock, "clock", "", "timer clock: transport or wall")

	cmd.AddCommand(
		newPingCmd(o),
		newBcastCmd(o),
		newReduceCmd(o),
		newGatherCmd(o),
		newUsageCmd(o),
		newReportCmd(o),
		newConfigCmd(o),
	)

	return cmd
}

// settings resolves the configuration files and applies the flags that were
// set on the command line.
func (o *options) settings(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Read(o.configFile, o.dotenv)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()

	if flags.Changed("np") {
		cfg.Ranks = o.np
	}

	if flags.Changed("root") {
		cfg.Root = o.root
	}

	if flags.Changed("report") {
		cfg.ReportFile = o.report
	}

	if flags.Changed("db") {
		cfg.RecordDB = o.db
	}

	if flags.Changed("backend") {
		cfg.RecordBackend = o.backend
	}

	if flags.Changed("monitor") {
		cfg.Monitor = o.monitor
	}

	if flags.Changed("monitor-port") {
		cfg.MonitorPort = o.monitorPort
	}

	if flags.Changed("open-browser") {
		cfg.OpenBrowser = o.openBrowser
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if flags.Changed("clock") {
		cfg.Clock = o.clock
	}

	return cfg, cfg.Validate()
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
