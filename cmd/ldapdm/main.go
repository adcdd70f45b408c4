// Package main provides the entry point for the directory management
// server.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dirctl/ldapdm/internal/version"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ldapdm",
	Short: "ldapdm - pluggable LDAP directory management server",
	Long:  "A schema-driven HTTP/JSON server for managing LDAP directory entries, with per-branch authorization, a soft-delete trash, and a plugin hook pipeline.",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaValidateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCheckCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.FormatVersion())
	},
}
