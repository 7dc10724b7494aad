package main

import (
	"fmt"

	"github.com/spf13/cobra"

	corecfg "github.com/xtal-lab/xtal/internal/core/config"
	"github.com/xtal-lab/xtal/internal/core/storage/postgres"
	"github.com/xtal-lab/xtal/internal/migrations"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or with --down, roll back) the PostgreSQL migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back every applied migration")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Type != corecfg.StoragePostgres {
		return fmt.Errorf("migrate requires storage.type %q, got %q", corecfg.StoragePostgres, cfg.Storage.Type)
	}

	db, err := postgres.Open(cfg.Storage.DSN, cfg.Storage.MaxOpenConns, cfg.Storage.MaxIdleConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrateDown {
		return migrations.Rollback(db)
	}
	return migrations.RunMigrations(db, true)
}
