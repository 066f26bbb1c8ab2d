package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pgscope",
	Short: "Read-only PostgreSQL introspection server for AI agents",
	Long: `pgscope exposes a PostgreSQL database to AI agents over the Model
Context Protocol (stdio). Agents can explore schemas, tables, and
constraints, and run queries that are guaranteed not to modify anything.
It can reach databases behind an SSH bastion via a built-in tunnel.`,
	// SilenceUsage prevents printing the usage message on errors we
	// handle ourselves (bad flags, failed connections).
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pgscope version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
