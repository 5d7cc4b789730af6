package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gravel/internal/emit"
	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/relation"
	"github.com/roach88/gravel/internal/schema"
	"github.com/roach88/gravel/internal/sqlgen"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema  string // schema document path
	Program string // program file path
	Inline  bool   // render literals into the SQL text
	Output  string // output file path
}

// CompileResult holds the rendered query.
type CompileResult struct {
	SQL         string `json:"sql"`
	Params      []any  `json:"params"`
	Fingerprint string `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a block program to SQL",
		Long: `Compile a block program against a schema document and print the
resulting SQL query.

By default values are rendered as ? placeholders and listed separately;
--inline renders them into the SQL text.

Example:
  gravel compile --schema schema.cue --program query.yaml
  gravel compile --schema schema.cue --program query.yaml --inline --format json`,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to schema document (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "path to program file (required)")
	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "render literals into the SQL text")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result, err := compileQuery(formatter, opts.Schema, opts.Program, opts.Inline)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if werr := os.WriteFile(opts.Output, []byte(result.SQL+"\n"), 0o644); werr != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", werr), nil)
			return WrapExitError(ExitCommandError, "writing output file", werr)
		}
		formatter.VerboseLog("Wrote SQL to %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintln(formatter.Writer, result.SQL)
	if len(result.Params) > 0 {
		parts := make([]string, len(result.Params))
		for i, p := range result.Params {
			parts[i] = fmt.Sprintf("%v", p)
		}
		fmt.Fprintf(formatter.Writer, "-- params: %s\n", strings.Join(parts, ", "))
	}
	formatter.VerboseLog("fingerprint: %s", result.Fingerprint)
	return nil
}

// compileQuery runs the schema-load, program-load, compile, render
// pipeline shared by the compile and run commands.
func compileQuery(formatter *OutputFormatter, schemaPath, programPath string, inline bool) (*CompileResult, error) {
	meta, err := schema.LoadMetadata(schemaPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading schema", err)
	}
	formatter.VerboseLog("Loaded schema from %s", schemaPath)

	prog, err := ir.LoadProgram(programPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading program", err)
	}
	formatter.VerboseLog("Loaded program from %s (%d blocks)", programPath, len(prog.Blocks))

	plan, err := emit.Compile(prog, meta)
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "compilation failed", err)
	}

	compiler := &sqlgen.Compiler{InlineLiterals: inline}
	sql, params, err := compiler.Compile(plan)
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "rendering failed", err)
	}

	fingerprint, err := relation.Fingerprint(plan)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "fingerprinting failed", err)
	}

	if params == nil {
		params = []any{}
	}
	return &CompileResult{
		SQL:         sql,
		Params:      params,
		Fingerprint: string(fingerprint),
	}, nil
}
