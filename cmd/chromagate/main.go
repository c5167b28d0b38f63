// Chromagate is a stateful command gateway in front of a Chroma server.
//
// Usage:
//
//	# Start the gateway with ~/.config/chromagate/config.yaml and env overrides
//	chromagate serve
//
//	# Run a command against a running gateway
//	chromagate invoke create_client --args '{"url":"http://localhost:8000"}'
//	chromagate invoke fetch_embeddings --args '{"collection_name":"docs","limit":10}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chromagate",
		Short: "Stateful command gateway for Chroma",
		Long: `chromagate holds one configured Chroma connection and serves named
commands against it over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newInvokeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chromagate by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
