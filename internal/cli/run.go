package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gravel/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Schema   string
	Program  string
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a program and execute it against SQLite",
		Long: `Compile a block program to SQL and run it against a SQLite database.

The query always runs parameterized; values never land in the SQL text.

Example:
  gravel run --schema schema.cue --program query.yaml --db ./animals.db
  gravel run --schema schema.cue --program query.yaml --db ./animals.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "path to schema document (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "path to program file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, err := compileQuery(formatter, opts.Schema, opts.Program, false)
	if err != nil {
		return err
	}
	logger.Debug("compiled query", "sql", result.SQL, "params", len(result.Params))

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeQueryFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer st.Close()

	rows, err := st.Run(cmd.Context(), result.SQL, result.Params)
	if err != nil {
		_ = formatter.Error(ErrCodeQueryFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "executing query", err)
	}
	logger.Info("query executed", "run_id", rows.RunID, "rows", len(rows.Rows))

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	// Human-readable text output: header line, then one line per row.
	fmt.Fprintln(formatter.Writer, strings.Join(rows.Columns, "\t"))
	for _, row := range rows.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				parts[i] = "NULL"
				continue
			}
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(parts, "\t"))
	}
	return nil
}
