package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "diff",
		Aliases: []string{"plan"},
		Short:   "Show differences between the schema and the database",
		Long: `Show what 'mongoprov provision' would do against the current database.

Examples:
  mongoprov diff                  # Use the built-in definition
  mongoprov diff -s schema.yaml   # Use a schema file
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			return a.printPlan(cmd.Context(), cmd.OutOrStdout(), def)
		},
	}
}

// computePlan introspects the database and diffs it against def.
func (a *app) computePlan(ctx context.Context, def *schema.Definition) ([]diff.Operation, *introspect.State, error) {
	store, err := a.openStore(ctx, def)
	if err != nil {
		return nil, nil, err
	}
	defer a.closeStore(store)

	existing, err := store.Inspect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("introspecting database: %w", err)
	}

	var admins int64
	if _, ok := existing.Collection(def.Admin.Collection); ok {
		if admins, err = store.CountAdmins(ctx, def.Admin.Collection); err != nil {
			return nil, nil, fmt.Errorf("counting admins: %w", err)
		}
	}
	return diff.DiffDefinition(def, existing, admins), existing, nil
}

func (a *app) printPlan(ctx context.Context, w io.Writer, def *schema.Definition) error {
	ops, _, err := a.computePlan(ctx, def)
	if err != nil {
		return err
	}
	showPlan(w, def, ops)
	return nil
}

func showPlan(w io.Writer, def *schema.Definition, ops []diff.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "✅ No differences found between schema and database")
		return
	}

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Fprintf(w, "🌳 Planned changes for database %s\n", def.Database)
	fmt.Fprintln(w, strings.Repeat("=", 50))

	byCollection := map[string][]diff.Operation{}
	var admin []diff.Operation
	for _, op := range ops {
		if op.Type == diff.BootstrapAdmin {
			admin = append(admin, op)
			continue
		}
		byCollection[op.Collection] = append(byCollection[op.Collection], op)
	}

	for _, name := range def.CollectionNames() {
		collOps := byCollection[name]
		if len(collOps) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n📋 %s:\n", name)
		for _, op := range collOps {
			switch op.Type {
			case diff.CreateCollection:
				green.Fprintln(w, "  ➕ CREATE COLLECTION")
			case diff.CreateIndex:
				green.Fprintf(w, "  ➕ CREATE INDEX %s\n", op.Index)
			case diff.IndexConflict:
				yellow.Fprintf(w, "  ⚠️  CONFLICT %s: %s\n", op.Index.EffectiveName(), op.Reason)
			}
		}
	}

	for _, op := range admin {
		fmt.Fprintln(w, "\n👤 Admin:")
		blue.Fprintf(w, "  🔄 %s\n", op)
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "📊 %d collection(s), %d index(es) to create, %d conflict(s)\n",
		diff.Count(ops, diff.CreateCollection), diff.Count(ops, diff.CreateIndex), diff.Count(ops, diff.IndexConflict))
}
