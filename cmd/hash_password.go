package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/mongoprov/credential"
)

func newHashPasswordCmd(a *app) *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Long: `Read a password from standard input and print its bcrypt hash, suitable
for MONGOPROV_ADMIN_PASSWORD_HASH. Only the first line is used.

Examples:
  echo -n 's3cret' | mongoprov hash-password
  mongoprov hash-password --cost 12 < password.txt
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password from stdin: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")

			hash, err := credential.Hash(password, cost)
			if err != nil {
				return err
			}
			a.log.Debug("password hashed")
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", credential.DefaultCost, "bcrypt cost")
	return cmd
}
