package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/chromagate/internal/http"
	"github.com/fyrsmithlabs/chromagate/internal/records"
)

type invokeOptions struct {
	serverURL string
	args      string
	precision int
	timeout   time.Duration
}

// commandEnvelope is the union of the success and error bodies.
type commandEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Kind   string          `json:"kind"`
}

func newInvokeCmd() *cobra.Command {
	opts := invokeOptions{}

	cmd := &cobra.Command{
		Use:   "invoke <command>",
		Short: "Run a gateway command against a running server",
		Long: `Run one named command against a running chromagate server and print
the result.

Commands: ` + strings.Join(httpserver.CommandNames(), ", ") + `

Examples:
  # Configure the session
  chromagate invoke create_client --args '{"url":"http://localhost:8000"}'

  # Token auth
  chromagate invoke create_client --args '{"url":"http://localhost:8000","auth":{"authMethod":"token_auth","tokenType":"bearer","token":"..."}}'

  # Second page of ten rows
  chromagate invoke fetch_embeddings --args '{"collection_name":"docs","limit":10,"offset_index":1}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "http://127.0.0.1:9191", "chromagate server URL")
	cmd.Flags().StringVar(&opts.args, "args", "{}", "command arguments as a JSON object")
	cmd.Flags().IntVar(&opts.precision, "precision", records.DefaultPrecision, "decimal places when printing embeddings")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")
	return cmd
}

func runInvoke(cmd *cobra.Command, name string, opts invokeOptions) error {
	if !json.Valid([]byte(opts.args)) {
		return fmt.Errorf("--args is not valid JSON")
	}

	url := fmt.Sprintf("%s/api/v1/commands/%s", strings.TrimRight(opts.serverURL, "/"), name)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader([]byte(opts.args)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env commandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s [%s]", env.Error, env.Kind)
	}

	out := cmd.OutOrStdout()
	if name == "fetch_embeddings" {
		var rows []records.RowRecord
		if err := json.Unmarshal(env.Result, &rows); err != nil {
			return fmt.Errorf("failed to decode rows: %w", err)
		}
		return printRows(out, rows, opts.precision)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Result, "", "  "); err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}

func printRows(out io.Writer, rows []records.RowRecord, precision int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMBEDDING\tDOCUMENT\tMETADATA")
	for _, row := range rows {
		meta, err := json.Marshal(row.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", row.ID, err)
		}
		fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s\n", row.ID, records.FormatEmbedding(row.Embedding, precision), row.Document, meta)
	}
	return tw.Flush()
}
