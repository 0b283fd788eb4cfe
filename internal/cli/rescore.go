// Package cli implements the rescore operator command.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/bayesrank/internal/bayes"
)

// Rescorer is the part of the rating engine the command drives.
type Rescorer interface {
	Recount(ctx context.Context, itemID string) error
	UpdateBayesianAverage(ctx context.Context, scope bayes.Scope) error
}

// Opener connects a Rescorer. The returned func releases it.
type Opener func(ctx context.Context) (Rescorer, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Timeout time.Duration
}

// NewRootCommand creates the rescore command tree.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Recompute movie Bayesian ratings",
		Long: `Recompute the derived rating fields of the movie catalogue.

"all" rescores every rated movie with the current prior. "movie" recounts
the ratings of one movie and then rescores it, or every rated movie when
the prior has drifted.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "overall deadline")

	cmd.AddCommand(newAllCommand(opts, open))
	cmd.AddCommand(newMovieCommand(opts, open))
	return cmd
}

func newAllCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Rescore every rated movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRescorer(cmd, opts, open, func(ctx context.Context, r Rescorer) error {
				if err := r.UpdateBayesianAverage(ctx, bayes.AllItems()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rescored all rated movies")
				return nil
			})
		},
	}
}

func newMovieCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "movie <movie-id>",
		Short: "Recount and rescore one movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid movie id %q: %w", args[0], err)
			}
			return withRescorer(cmd, opts, open, func(ctx context.Context, r Rescorer) error {
				if err := r.Recount(ctx, id.String()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recounted movie %s\n", id)
				return nil
			})
		},
	}
}

func withRescorer(cmd *cobra.Command, opts *RootOptions, open Opener, fn func(context.Context, Rescorer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	r, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, r)
}
