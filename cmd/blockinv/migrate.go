package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/schema"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.postgres()
			if err != nil {
				return err
			}
			if err := db.Migrate(commandContext(cmd), schema.SQL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

// kitchenSinkPage is the page that embeds the kitchen sink directive.
var kitchenSinkPage = content.Item{
	ContentType: content.TypePage,
	Status:      content.StatusPublish,
	Title:       "Kitchen Sink",
	Slug:        "kitchen-sink",
	Body:        "[kitchen_sink]",
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		fixture     string
		kitchenSink bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load content from a YAML fixture into PostgreSQL",
		Long: `Load content types and items from a YAML fixture into PostgreSQL.

Items are written with the ids from the fixture, replacing existing rows.
With --kitchen-sink a published "Kitchen Sink" page embedding the
kitchen_sink directive is created unless one already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixture == "" && !kitchenSink {
				return fmt.Errorf("nothing to seed: pass --fixture and/or --kitchen-sink")
			}
			db, err := a.postgres()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			store := content.NewSQLStore(db)
			out := cmd.OutOrStdout()

			if fixture != "" {
				fx, err := content.ReadFixture(fixture)
				if err != nil {
					return err
				}
				for _, t := range fx.Types {
					if err := store.UpsertType(ctx, t); err != nil {
						return err
					}
				}
				for _, item := range fx.Items {
					if item.ID <= 0 {
						return fmt.Errorf("fixture item %q has no id", item.Title)
					}
					if err := store.Upsert(ctx, item); err != nil {
						return err
					}
				}
				if err := store.SyncSequence(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "seeded %d types and %d items from %s\n", len(fx.Types), len(fx.Items), fixture)
			}

			if kitchenSink {
				id, created, err := store.EnsureItem(ctx, kitchenSinkPage)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "created kitchen sink page %d\n", id)
				} else {
					fmt.Fprintf(out, "kitchen sink page already exists (%d)\n", id)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML fixture to load")
	cmd.Flags().BoolVar(&kitchenSink, "kitchen-sink", false, "create the kitchen sink page")
	return cmd
}
