package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/schema"
)

func newHealthCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		Long: `Check if the database is accessible and responsive.

Examples:
  mongoprov health                    # Check the configured connection
  mongoprov health --timeout 10s      # Set custom timeout
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := a.checkHealth(ctx, cmd.OutOrStdout(), def); err != nil {
				return fmt.Errorf("database health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Database is healthy and accessible")
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Timeout for health check")
	return cmd
}

func (a *app) checkHealth(ctx context.Context, w io.Writer, def *schema.Definition) error {
	store, err := a.openStore(ctx, def)
	if err != nil {
		return err
	}
	defer a.closeStore(store)

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	version, err := store.ServerVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read server version: %w", err)
	}
	fmt.Fprintf(w, "🍃 MongoDB %s\n", version)

	names, err := store.CollectionNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	present := map[string]bool{}
	for _, n := range names {
		present[n] = true
	}
	database, declared := def.Database, def.CollectionNames()
	found := 0
	for _, n := range declared {
		if present[n] {
			found++
		}
	}

	if found == 0 {
		fmt.Fprintf(w, "⚠️  Database %s is accessible but not provisioned\n", database)
		fmt.Fprintln(w, "   Run 'mongoprov provision' to create collections and indexes")
		return nil
	}
	fmt.Fprintf(w, "📊 Found %d of %d declared collections in %s\n", found, len(declared), database)
	return nil
}
