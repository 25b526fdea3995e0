package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := *cfg
		redacted.DocCloud.ClientSecret = redact(redacted.DocCloud.ClientSecret)
		redacted.AI.Key = redact(redacted.AI.Key)
		redacted.Server.AuthToken = redact(redacted.Server.AuthToken)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(&redacted); err != nil {
			return eris.Wrap(err, "config: encode")
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
