package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/loader"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		file  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in schema definition to a file",
		Long: `Write the built-in schema definition to a YAML file so it can be edited.

The file declares the database, its collections with their indexes, and the
admin collection with its bootstrap policy. Pass it to other commands with
--schema.

Examples:
  mongoprov init                      # Write schema.yaml
  mongoprov init --file db/schema.yaml
  mongoprov init --force              # Overwrite an existing file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", file)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			if err := os.WriteFile(file, loader.BuiltinYAML(), 0o644); err != nil {
				return fmt.Errorf("error creating %s: %w", file, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✅ Created %s\n", file)
			fmt.Fprintln(w, "\n📝 Next steps:")
			fmt.Fprintf(w, "  1. Edit %s to declare your collections and indexes\n", file)
			fmt.Fprintf(w, "  2. Run 'mongoprov validate -s %s' to check it\n", file)
			fmt.Fprintf(w, "  3. Run 'mongoprov diff -s %s' to preview the changes\n", file)
			fmt.Fprintf(w, "  4. Run 'mongoprov provision -s %s' to apply them\n", file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "schema.yaml", "File to write")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
