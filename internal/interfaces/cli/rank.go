package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/client"
)

func newRankCmd(opts *RootOptions) *cobra.Command {
	var (
		candidatesPath string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "rank <query>",
		Short: "Rank a candidate pool against a query",
		Long: `Rank reads a JSON array of candidate records from --candidates and
orders them against the query, printing each candidate's score breakdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(candidatesPath)
			if err != nil {
				return fmt.Errorf("read candidates: %w", err)
			}
			var candidates []client.Candidate
			if err := json.Unmarshal(raw, &candidates); err != nil {
				return fmt.Errorf("parse candidates: %w", err)
			}

			c, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			res, err := c.Rank(ctx, client.RankRequest{
				Query:      args[0],
				Candidates: candidates,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			if opts.OutputFormat == "json" {
				return printJSON(res)
			}

			fmt.Printf("normalized: %s\n", res.NormalizedQuery)
			for i, cand := range res.Results {
				b := cand.Breakdown
				fmt.Printf("%2d. %-10s %-40s score=%.1f\n", i+1, cand.Table, cand.Title, b.Total)
				fmt.Printf("      tier=%d(%.0f) conj=%.1f prox=%.1f conf=%.1f intent=%.1f recency=%.1f noise=%.1f\n",
					b.Tier, b.TierPoints, b.Conjunction, b.Proximity,
					b.EntityConfidence, b.IntentPrior, b.Recency, b.NoisePenalty)
				if len(b.MatchedEntities) > 0 {
					fmt.Printf("      matched: %v\n", b.MatchedEntities)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&candidatesPath, "candidates", "c", "", "path to a JSON array of candidates (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (0 = server default)")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func newTypesCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the entity types the service recognizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			res, err := c.Types(ctx)
			if err != nil {
				return err
			}
			if opts.OutputFormat == "json" {
				return printJSON(res)
			}
			fmt.Printf("config version: %s\n", res.ConfigVersion)
			for _, t := range res.Types {
				fmt.Printf("  %-14s %s\n", t.Type, t.Description)
			}
			return nil
		},
	}
}
