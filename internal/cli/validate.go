package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gravel/internal/emit"
	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema  string
	Program string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema document and optionally a program",
		Long: `Validate a schema document without compiling a query.

Checks that every edge targets a known type and that its join columns
exist on both endpoint tables. With --program, also checks the program's
block ordering.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to schema document (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "path to program file (optional)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	meta, err := schema.LoadMetadata(opts.Schema)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading schema", err)
	}

	result := ValidationResult{Valid: true}
	for _, verr := range meta.Validate() {
		result.Valid = false
		result.Errors = append(result.Errors, verr.Error())
	}

	if opts.Program != "" {
		prog, err := ir.LoadProgram(opts.Program)
		if err != nil {
			_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading program", err)
		}
		if _, _, _, err := emit.SplitBlocks(prog.Blocks); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintln(formatter.Writer, "✓ Valid")
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Invalid (%d problem(s))\n", len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", len(result.Errors)))
	}
	return nil
}
