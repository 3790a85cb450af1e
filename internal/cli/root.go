// Package cli wires the storefront processes behind one cobra binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "storefront",
		Short: "Asynchronous storefront purchase pipeline",
		Long: `storefront runs the purchase pipeline processes.

  ingress      accepts purchase intents and publishes them to the purchase topic
  fulfillment  settles intents from the topic and serves the Query Service
  standalone   both of the above in one process over an in-memory channel
  seed         tops the store up with generated users and items
  migrate      applies the embedded schema

Configuration comes from config/config-<ENVIRONMENT>.yaml and environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(ingressCmd)
	rootCmd.AddCommand(fulfillmentCmd)
	rootCmd.AddCommand(standaloneCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
