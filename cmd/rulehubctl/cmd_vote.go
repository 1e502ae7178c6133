package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pscheid92/rulehub/pkg/voteclient"
	"github.com/spf13/cobra"
)

func newVoteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <item-id> <up|down|none>",
		Short: "Cast, flip or retract a vote",
		Long:  `Cast a vote on a rule. Voting the same direction twice retracts the
vote, as does "none".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vote, err := parseVoteArg(args[1])
			if err != nil {
				return err
			}

			res, quota, err := opts.client().Vote(cmd.Context(), args[0], vote)
			if err != nil {
				return describeVoteError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "up %d  down %d  your vote: %s\n", res.Upvotes, res.Downvotes, voteLabel(res.UserVote))
			if quota.Limit > 0 {
				fmt.Fprintf(out, "%d of %d votes left in this window\n", quota.Remaining, quota.Limit)
			}
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <item-id>",
		Short: "Show the counters of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := opts.client().Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "upvotes\t%d\n", counts.Upvotes)
			fmt.Fprintf(w, "downvotes\t%d\n", counts.Downvotes)
			fmt.Fprintf(w, "views\t%d\n", counts.Views)
			fmt.Fprintf(w, "copies\t%d\n", counts.Copies)
			return w.Flush()
		},
	}
}

func newItemsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List the rules in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := opts.client().Items(cmd.Context())
			if err != nil {
				return err
			}
			return printItems(cmd.OutOrStdout(), items)
		},
	}
}

func printItems(out io.Writer, items []voteclient.Item) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tTITLE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.Category, it.Title)
	}
	return w.Flush()
}

func parseVoteArg(arg string) (voteclient.Vote, error) {
	switch strings.ToLower(arg) {
	case "up":
		return voteclient.VoteUp, nil
	case "down":
		return voteclient.VoteDown, nil
	case "none", "null":
		return voteclient.VoteNone, nil
	default:
		return "", fmt.Errorf("invalid vote %q: must be up, down or none", arg)
	}
}

func voteLabel(v voteclient.Vote) string {
	if v == voteclient.VoteNone || v == "" {
		return "none"
	}
	return string(v)
}

func describeVoteError(err error) error {
	var apiErr *voteclient.APIError
	switch {
	case errors.Is(err, voteclient.ErrRateLimited) && errors.As(err, &apiErr):
		return fmt.Errorf("rate limited, retry in %s: %w", apiErr.RetryAfter(), err)
	case errors.Is(err, voteclient.ErrPatternRejected) && errors.As(err, &apiErr):
		return fmt.Errorf("vote rejected (%s): %w", apiErr.Message, err)
	default:
		return err
	}
}
