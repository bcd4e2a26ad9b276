package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/loader"
	"github.com/ridoystarlord/mongoprov/validator"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		format string
		online bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema definition",
		Long: `Validate the schema definition before provisioning.

Offline checks (no database required):
- Database, collection, index and field names
- Duplicate collections, index names and key specifications
- Unique text indexes and more than one text index per collection
- Admin collection, name and policy

With --online every unique index is also checked against existing data:
values held by more than one document would make the index build fail.

Examples:
  mongoprov validate                    # Validate the built-in definition
  mongoprov validate -s schema.yaml     # Validate a schema file
  mongoprov validate --format json      # Output results as JSON
  mongoprov validate --online           # Also scan live data
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loader.Load(a.cfg.SchemaFile)
			if err != nil {
				return fmt.Errorf("failed to load schema: %w", err)
			}
			if err := a.cfg.Apply(def); err != nil {
				return err
			}

			var result *validator.ValidationResult
			if online {
				store, err := a.openStore(cmd.Context(), def)
				if err != nil {
					return err
				}
				defer a.closeStore(store)
				result, err = validator.NewSchemaValidator(store).ValidateOnline(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("failed to validate schema: %w", err)
				}
			} else {
				result = validator.NewSchemaValidator(nil).ValidateDefinition(def)
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				err = outputJSON(w, result)
			} else {
				outputText(w, result)
			}
			if err != nil {
				return err
			}
			if !result.Valid {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&online, "online", false, "Also check existing data against unique indexes")
	return cmd
}

func outputJSON(w io.Writer, result *validator.ValidationResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(w io.Writer, result *validator.ValidationResult) {
	if result.Valid {
		color.New(color.FgGreen).Fprintln(w, "✅ Schema validation passed!")
	} else {
		color.New(color.FgRed).Fprintln(w, "❌ Schema validation failed!")
	}

	printIssues(w, "🔴 Errors", result.Errors)
	printIssues(w, "🟡 Warnings", result.Warnings)
	printIssues(w, "🔵 Info", result.Info)

	fmt.Fprintf(w, "\n📊 Summary:\n")
	fmt.Fprintf(w, "  • Errors: %d\n", len(result.Errors))
	fmt.Fprintf(w, "  • Warnings: %d\n", len(result.Warnings))
	fmt.Fprintf(w, "  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Fprintf(w, "\n🎉 Your schema is valid and ready for provisioning!\n")
	} else {
		fmt.Fprintf(w, "\n💡 Fix the errors above before provisioning.\n")
	}
}

func printIssues(w io.Writer, title string, issues []validator.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(issues))
	for i, issue := range issues {
		fmt.Fprintf(w, "  %d. ", i+1)
		if issue.Collection != "" {
			fmt.Fprintf(w, "[%s]", issue.Collection)
		}
		if issue.Field != "" {
			fmt.Fprintf(w, ".%s", issue.Field)
		}
		if issue.Index != "" {
			fmt.Fprintf(w, " (index: %s)", issue.Index)
		}
		fmt.Fprintf(w, ": %s\n", issue.Message)
	}
}
