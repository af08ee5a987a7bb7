package cmd

import (
	"fmt"
	"log"
	"os"

	"EmberFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "emberfm",
	Short: "EmberFM is a music discovery service with preview-gated voting.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting EmberFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
