package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localrivet/editormcp/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration against the accepted ranges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := loaded.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (listening on %s)\n", loaded.ListenAddress())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.Marshal(loaded)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
