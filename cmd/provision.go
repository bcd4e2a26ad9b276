package cmd

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/mongoprov/report"
	"github.com/ridoystarlord/mongoprov/runner"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/spf13/cobra"
)

func newProvisionCmd(a *app) *cobra.Command {
	var (
		output         string
		dryRun         bool
		allowConflicts bool
	)

	cmd := &cobra.Command{
		Use:     "provision",
		Aliases: []string{"apply", "migrate"},
		Short:   "Create missing collections and indexes and bootstrap the admin",
		Long: `Bring the database in line with the schema definition.

Steps run in order and stop at the first fatal error:
  1. connect
  2. create every declared collection that does not exist
  3. create every declared index that does not exist
  4. bootstrap the administrator (insert-if-absent or reset-to-single)
  5. print a summary

Running it again is safe: existing collections and identical indexes are left
alone. The admin password must be supplied as a bcrypt hash.

Examples:
  mongoprov provision
  mongoprov provision --admin-policy reset-to-single
  mongoprov provision --stop-on-index-error=false --output json
  mongoprov provision --dry-run
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.definition()
			if err != nil {
				return err
			}

			if dryRun {
				return a.printPlan(cmd.Context(), cmd.OutOrStdout(), def)
			}

			if err := a.cfg.RequireAdminHash(); err != nil {
				return err
			}
			if err := a.cfg.RequireMongoURI(); err != nil {
				return err
			}

			reporter, err := report.New(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if a.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
				defer cancel()
			}

			p := runner.New(def,
				runner.AdminSeed{Name: def.Admin.Name, PasswordHash: a.cfg.AdminPasswordHash},
				a.connector(def),
				runner.Options{
					StopOnIndexError: a.cfg.StopOnIndexError,
					Reporter:         reporter,
					Logger:           a.log,
				})

			res, err := p.Run(ctx)
			if err != nil {
				report.Failure(cmd.ErrOrStderr(), res, err)
				return errReported
			}
			if !res.Succeeded(allowConflicts) {
				return fmt.Errorf("%d index(es) could not be created: %w", len(res.IndexFailures), res.IndexErr())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Summary format (text, json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without changing the database")
	cmd.Flags().BoolVar(&allowConflicts, "allow-index-conflicts", false, "Exit zero when the only failures are skipped index conflicts")
	return cmd
}

func (a *app) connector(def *schema.Definition) runner.Connector {
	return func(ctx context.Context) (runner.Store, error) {
		store, err := a.openStore(ctx, def)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
