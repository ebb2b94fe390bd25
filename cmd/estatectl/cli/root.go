// Package cli holds the estatectl commands.
package cli

import (
	"context"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/estate-ledger/jobs"
)

// Migrator applies the embedded schema.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
}

// Seeder installs the default chart of accounts.
type Seeder interface {
	SeedDefaults(ctx context.Context) (int, error)
}

// Queue triggers and inspects background jobs.
type Queue interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
}

// Env is the set of resources a command may use. Nil members are reported
// as unavailable by the commands that need them.
type Env struct {
	Migrator Migrator
	Seeder   Seeder
	Queue    Queue
	Balances jobs.TrialBalancer
	Close    func()
}

// Opener connects the resources for one command invocation.
type Opener func(ctx context.Context) (*Env, error)

// NewRootCommand assembles the estatectl command tree.
func NewRootCommand(open Opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "estatectl",
		Short:         "Operations tooling for the estate ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(
		newMigrateCommand(open),
		newSeedCommand(open),
		newJobsCommand(open),
		newTrialBalanceCommand(open),
	)
	return root
}

// withEnv opens the environment, runs fn and releases the resources.
func withEnv(cmd *cobra.Command, open Opener, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := open(ctx)
	if err != nil {
		return err
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(ctx, env)
}
