package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haskel/tabml/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long:  `Display the effective configuration (file merged over defaults). Secrets are omitted from JSON output.`,
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var validateOnly bool

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate config, don't print")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		if jsonOut {
			fmt.Fprintf(w, `{"valid":false,"error":%q}`+"\n", err.Error())
		} else {
			fmt.Fprintln(w, errorStyle.Render("Configuration invalid: ")+err.Error())
		}
		return err
	}

	if validateOnly {
		if jsonOut {
			fmt.Fprintln(w, `{"valid":true}`)
		} else {
			fmt.Fprintln(w, successStyle.Render("Configuration is valid"))
		}
		return nil
	}

	if jsonOut {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	redacted := *cfg
	if redacted.Auth.Password != "" {
		redacted.Auth.Password = "********"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(data))
	return nil
}
