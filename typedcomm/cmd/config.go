package cmd

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as TOML.",
		Long: "`config` resolves the settings file, the dotenv file, the " +
			"TYPEDCOMM_* environment and the flags, and prints the result.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.settings(cmd)
			if err != nil {
				return err
			}

			return cfg.Write(cmd.OutOrStdout())
		},
	}
}
