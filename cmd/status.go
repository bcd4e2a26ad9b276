package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which declared collections and indexes exist",
		Long: `Show, per declared collection, whether it exists and how many of its
indexes are present, missing or conflicting. Nothing is changed.

Examples:
  mongoprov status
  mongoprov status --database staging
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			ops, live, err := a.computePlan(cmd.Context(), def)
			if err != nil {
				return err
			}
			showStatus(cmd.OutOrStdout(), def, live, ops)
			return nil
		},
	}
}

func showStatus(w io.Writer, def *schema.Definition, live *introspect.State, ops []diff.Operation) {
	missing := map[string]int{}
	conflicts := map[string]int{}
	for _, op := range ops {
		switch op.Type {
		case diff.CreateIndex:
			missing[op.Collection]++
		case diff.IndexConflict:
			conflicts[op.Collection]++
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Collection", "Exists", "Indexes", "Missing", "Conflicts"})
	for _, coll := range def.Collections {
		exists := "no"
		if _, ok := live.Collection(coll.Name); ok {
			exists = "yes"
		}
		present := len(coll.Indexes) - missing[coll.Name] - conflicts[coll.Name]
		table.Append([]string{
			coll.Name,
			exists,
			fmt.Sprintf("%d/%d", present, len(coll.Indexes)),
			strconv.Itoa(missing[coll.Name]),
			strconv.Itoa(conflicts[coll.Name]),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n👤 Admin collection %s, policy %s\n", def.Admin.Collection, def.Admin.Policy)
	if diff.Count(ops, diff.BootstrapAdmin) > 0 {
		fmt.Fprintf(w, "   🕒 pending: %s\n", adminPending(ops))
	} else {
		fmt.Fprintln(w, "   ✅ an admin is present")
	}

	var undeclared []string
	for _, name := range live.Names() {
		if !declared(def, name) {
			undeclared = append(undeclared, name)
		}
	}
	if len(undeclared) > 0 {
		fmt.Fprintf(w, "\n🔵 %d collection(s) not in the schema (left untouched):\n", len(undeclared))
		for _, name := range undeclared {
			fmt.Fprintln(w, "   -", name)
		}
	}
}

func adminPending(ops []diff.Operation) string {
	for _, op := range ops {
		if op.Type == diff.BootstrapAdmin {
			return op.String()
		}
	}
	return ""
}

func declared(def *schema.Definition, name string) bool {
	for _, c := range def.Collections {
		if c.Name == name {
			return true
		}
	}
	return false
}
