package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "formai",
		Short: "Form schema and submission storage engine",
		Long: `formai stores form definitions, provisions a submission namespace per
form and validates every submission against the form schema.`,
		Example: `  # Run the HTTP and gRPC servers
  formai serve --data-dir ./data

  # Generate a form definition from a description
  formai generate "inscription à un atelier de poterie"

  # Check a definition file
  formai validate form.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to a JSON config file")

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
