package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/schema"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newGenerateCmd() *cobra.Command {
	var (
		refinePath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a form definition from a description",
		Long: `Generate asks the configured model for a form definition and prints it
once it passes validation. With --refine, the description is applied as
instructions to the definition read from the given file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Generation.APIKey == "" {
				return fmt.Errorf("no API key configured: set AI_API_KEY or ANTHROPIC_API_KEY")
			}

			adapter := generation.NewAdapter(
				generation.NewAnthropicGenerator(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens),
				nil,
				generation.Config{
					Model:      cfg.Generation.Model,
					Timeout:    cfg.Generation.Timeout,
					MaxRetries: cfg.Generation.MaxRetries,
				},
			)

			var current *schema.Definition
			if refinePath != "" {
				payload, err := readInput(cmd.InOrStdin(), refinePath)
				if err != nil {
					return err
				}
				current, err = schema.NewValidator().Validate(payload)
				if err != nil {
					return fmt.Errorf("%s: %w", refinePath, err)
				}
			}

			result, err := withSpinner(cmd.ErrOrStderr(), "Generating form", func() (*generation.Result, error) {
				if current != nil {
					return adapter.Refine(cmd.Context(), current, args[0])
				}
				return adapter.Generate(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}

			return writeDefinition(cmd.OutOrStdout(), outPath, result.Definition)
		},
	}

	cmd.Flags().StringVar(&refinePath, "refine", "", "Definition file to refine instead of generating a new one")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the definition to a file instead of stdout")
	return cmd
}

// withSpinner runs fn, animating a spinner on w when it is a terminal
func withSpinner(w io.Writer, msg string, fn func() (*generation.Result, error)) (*generation.Result, error) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(w, msg+"...")
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + msg
	s.FinalMSG = ""
	s.Start()
	defer s.Stop()

	return fn()
}

func writeDefinition(stdout io.Writer, path string, def *schema.Definition) error {
	out, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if path == "" {
		_, err = stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "Wrote %s (%d fields)\n", path, len(def.Fields))
	return nil
}
