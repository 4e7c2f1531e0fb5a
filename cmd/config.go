package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/netcodec/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Load the configuration file (or defaults), apply NETCODEC_* environment
overrides, validate it and print the result as YAML.

Examples:
  netcodec config
  netcodec -c netcodec.yml config`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("invalid configuration", err)
		}
		data, err := yaml.Marshal(map[string]*config.Config{"netcodec": cfg})
		if err != nil {
			exitWithError("failed to encode configuration", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	},
}
