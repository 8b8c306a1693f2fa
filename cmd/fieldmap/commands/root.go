package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rpattn/fieldmap/internal/config"
	"github.com/rpattn/fieldmap/internal/db"
)

// app carries state shared by every command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

// NewRootCmd builds the fieldmap command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "fieldmap",
		Short:         "Map tabular source rows onto a target schema with declarative rules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			InitLogging(cfg.Log.Level)
			log.Debug().Str("config", a.v.ConfigFileUsed()).Msg("configuration loaded")
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./fieldmap.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("db-host", "", "database host")
	flags.Int("db-port", 0, "database port")
	flags.String("db-name", "", "database name")
	bindFlag(a.v, "log.level", flags.Lookup("log-level"))
	bindFlag(a.v, "database.host", flags.Lookup("db-host"))
	bindFlag(a.v, "database.port", flags.Lookup("db-port"))
	bindFlag(a.v, "database.dbname", flags.Lookup("db-name"))

	rootCmd.AddCommand(newMapCmd(a))
	rootCmd.AddCommand(newPreviewCmd(a))
	rootCmd.AddCommand(newInspectCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newDefinitionsCmd(a))
	return rootCmd
}

// connect opens the configured database.
func (a *app) connect(ctx context.Context) (*db.Connection, error) {
	conn, err := db.NewConnection(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to %s@%s: %w", a.cfg.Database.DBName, a.cfg.Database.Host, err)
	}
	return conn, nil
}
