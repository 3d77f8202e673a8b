package main

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/inventory"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share. Connections are opened on first use
// so commands that do not need the database run without one.
type app struct {
	configPath string
	cfg        *config.Config
	db         *postgres.Client
	svc        *inventory.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "blockinv",
		Short:         "Inventory Gutenberg block usage across site content",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/development.yaml", "path to config file")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newKeysCmd(a),
		newBlocksCmd(a),
		newReferencesCmd(a),
		newExportCmd(a),
	)
	return root
}

// postgres connects on first call.
func (a *app) postgres() (*postgres.Client, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.New(a.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	a.db = db
	return db, nil
}

// store opens the content store selected by content.driver.
func (a *app) store() (content.Store, error) {
	if a.cfg.Content.Driver == "fixture" {
		return content.LoadFixture(a.cfg.Content.Fixture)
	}
	db, err := a.postgres()
	if err != nil {
		return nil, err
	}
	return content.NewSQLStore(db), nil
}

// inventory builds the inventory service on first call. Scan activity is
// not published from the CLI.
func (a *app) inventory() (*inventory.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	svc, err := inventory.New(store, inventory.Config{
		BaseURL:           a.cfg.Site.BaseURL,
		ReferenceMatching: a.cfg.Inventory.ReferenceMatching,
	})
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
