// Package cli implements the pmsquery command tree. Every subcommand talks
// to a running apiserver through the public SDK client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ServerAddr   string
	OutputFormat string
	Timeout      time.Duration
}

// NewRootCommand builds the pmsquery root with its global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:          "pmsquery",
		Short:        "Query understanding and ranking for planned-maintenance search",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.ServerAddr == "" {
				opts.ServerAddr = os.Getenv("CPMS_SERVER_ADDR")
			}
			if opts.ServerAddr == "" {
				opts.ServerAddr = "http://localhost:8080"
			}
			switch opts.OutputFormat {
			case "json", "text":
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (json|text)", opts.OutputFormat)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ServerAddr, "server", "", "apiserver base URL (default $CPMS_SERVER_ADDR or http://localhost:8080)")
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format: json|text")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newExtractCmd(opts),
		newRankCmd(opts),
		newTypesCmd(opts),
		newVersionCmd(),
	)
	return root
}

// newClient builds an SDK client from the global flags.
func (o *RootOptions) newClient() (*client.Client, error) {
	return client.NewClient(o.ServerAddr,
		client.WithUserAgent("pmsquery/"+Version),
	)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("pmsquery %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the root command; exit status follows cobra conventions.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
