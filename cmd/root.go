// Package cmd provides the apiflow CLI's command tree (spf13/cobra),
// mirroring the teacher's cli/cmd/root.go structure: a root command that
// registers leaf subcommands in init().
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apiflow",
	Short: "apiflow - HTTP workflow orchestration engine",
	Long: `apiflow executes declarative workflows: ordered API-call steps with
data-binding expressions between them, against a pluggable data store.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
