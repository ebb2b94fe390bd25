package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("estatectl: database not available")

func newMigrateCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	step := func(use, short string, run func(m Migrator, ctx context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
					if env.Migrator == nil {
						return errNoDatabase
					}
					if err := run(env.Migrator, ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", use)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(
		step("up", "Apply every pending migration", Migrator.Up),
		step("down", "Roll back the latest migration", Migrator.Down),
		step("status", "Print migration status", Migrator.Status),
	)
	return cmd
}

func newSeedCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(ctx context.Context, env *Env) error {
				if env.Seeder == nil {
					return errNoDatabase
				}
				inserted, err := env.Seeder.SeedDefaults(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts\n", inserted)
				return nil
			})
		},
	}
}
