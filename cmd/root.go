package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridoystarlord/mongoprov/config"
	"github.com/ridoystarlord/mongoprov/database"
	"github.com/ridoystarlord/mongoprov/loader"
	"github.com/ridoystarlord/mongoprov/logging"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/ridoystarlord/mongoprov/utils"
	"github.com/ridoystarlord/mongoprov/validator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("failure already reported")

// app is the state shared by all commands of one invocation.
type app struct {
	v   *viper.Viper
	cfg config.Config
	log *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "mongoprov",
		Short: "Declarative, idempotent MongoDB schema provisioning",
		Long: `mongoprov makes a MongoDB database match a schema definition: it creates
missing collections and indexes and bootstraps exactly one administrator.
Existing collections, indexes and data are never dropped.

Examples:

  mongoprov init
  mongoprov diff
  MONGOPROV_ADMIN_PASSWORD_HASH="$(echo -n secret | mongoprov hash-password)" mongoprov provision
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newProvisionCmd(a),
		newDiffCmd(a),
		newGenerateCmd(a),
		newStatusCmd(a),
		newValidateCmd(a),
		newHealthCmd(a),
		newInitCmd(a),
		newHashPasswordCmd(a),
	)
	return rootCmd
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "❌", err)
		}
		stop()
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.New(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	a.v = v

	loaded, err := utils.LoadEnv(v.GetString(config.KeyEnvFile))
	if err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.log = logger
	a.log.Debug("configuration loaded", zap.Strings("env_files", loaded), zap.String("schema", cfg.SchemaFile))
	return nil
}

// definition loads the schema, applies config overrides and runs the offline
// checks. An invalid definition is never used against a database.
func (a *app) definition() (*schema.Definition, error) {
	def, err := loader.Load(a.cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	if err := a.cfg.Apply(def); err != nil {
		return nil, err
	}
	res := validator.NewSchemaValidator(nil).ValidateDefinition(def)
	for _, w := range res.Warnings {
		a.log.Warn(w.Message, zap.String("collection", w.Collection))
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return def, nil
}

func (a *app) openStore(ctx context.Context, def *schema.Definition) (*database.Store, error) {
	if err := a.cfg.RequireMongoURI(); err != nil {
		return nil, err
	}
	store, err := database.Open(ctx, a.cfg.MongoURI, def.Database, a.cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store, nil
}

func (a *app) closeStore(store *database.Store) {
	if err := store.Close(context.Background()); err != nil {
		a.log.Warn("closing database connection", zap.Error(err))
	}
}
