package cmd

import (
	"fmt"

	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/generator"
	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out     string
		offline bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a mongosh script equivalent to a provisioning run",
		Long: `Generate a mongosh script that performs the pending changes.

By default the script contains only what the live database is missing. With
--offline no connection is made and the script initializes an empty database
from scratch. The admin password hash is read from the ADMIN_PASSWORD_HASH
environment variable when the script runs; it is never written to the file.

Examples:
  mongoprov generate                       # Script for pending changes
  mongoprov generate --offline -o init.js  # Full init script, no database needed
  mongoprov generate --dry-run             # Print instead of writing
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}

			var ops []diff.Operation
			if offline {
				ops = diff.DiffDefinition(def, introspect.NewState(def.Database), 0)
			} else {
				ops, _, err = a.computePlan(cmd.Context(), def)
				if err != nil {
					return err
				}
			}

			statements, err := generator.GenerateScript(def.Database, ops)
			if err != nil {
				return fmt.Errorf("generating script: %w", err)
			}

			w := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(w, "// ================ DRY RUN: Script Preview ================")
				for _, stmt := range statements {
					fmt.Fprintln(w, stmt)
				}
				fmt.Fprintln(w, "// (Dry run only. No files were written.)")
				return nil
			}

			filename, err := generator.WriteScript(out, statements)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "✅ Script generated:", filename)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "mongo-init.js", "Output file, or directory for a timestamped file")
	cmd.Flags().BoolVar(&offline, "offline", false, "Assume an empty database instead of connecting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the script without writing files")
	return cmd
}
