package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/client"
)

func newExtractCmd(opts *RootOptions) *cobra.Command {
	var (
		includeTrace bool
		skipCache    bool
	)

	cmd := &cobra.Command{
		Use:   "extract <query>",
		Short: "Extract typed entities from a search query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			res, err := c.Understand(ctx, client.UnderstandRequest{
				Query:        strings.Join(args, " "),
				IncludeTrace: includeTrace,
				SkipCache:    skipCache,
			})
			if err != nil {
				return err
			}

			if opts.OutputFormat == "json" {
				return printJSON(res)
			}

			fmt.Printf("normalized: %s\n", res.NormalizedQuery)
			fmt.Printf("gate: coverage=%.2f invoked=%v reason=%s\n",
				res.Gate.Coverage, res.Gate.Invoked, res.Gate.Reason)
			for _, e := range res.Entities {
				fmt.Printf("  [%3d:%3d] %-14s %-24q conf=%.2f source=%s\n",
					e.Span.Start, e.Span.End, e.Type, e.Text, e.Confidence, e.Source)
			}
			if includeTrace && res.Trace != nil {
				fmt.Printf("trace: deterministic=%d probabilistic=%d unanchored=%d\n",
					len(res.Trace.Deterministic), len(res.Trace.Probabilistic), len(res.Trace.Unanchored))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeTrace, "trace", false, "include per-stage extraction trace")
	cmd.Flags().BoolVar(&skipCache, "no-cache", false, "bypass the result cache")
	return cmd
}
