package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/formai/engine/internal/schema"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate a form definition",
		Long: `Validate checks a form definition (name, description, fields, layout and
settings) against the structural rules applied when forms are stored.
Use "-" to read the definition from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			def, err := schema.NewValidator().Validate(payload)
			if err != nil {
				var invalid *schema.InvalidError
				if errors.As(err, &invalid) {
					return fmt.Errorf("%s: %w", args[0], invalid)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d fields, %d data fields, layout %s)\n",
				def.Name, len(def.Fields), len(schema.DataFields(def.Fields)), def.Layout.Type)
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
