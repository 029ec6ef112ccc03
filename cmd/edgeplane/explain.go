package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/ir"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show which mappings a request would be routed to",
	Long: `Compile the manifest directory and show the group that would serve
a request, with its weighted members.

Examples:
  edgeplane explain -m ./manifests --host api.example.com --path /v1/users`,
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().String("host", "", "Request host")
	explainCmd.Flags().String("path", "/", "Request path")
	explainCmd.Flags().String("method", http.MethodGet, "Request method")
	explainCmd.Flags().StringToString("header", nil, "Request headers (name=value)")
}

func runExplain(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	path, _ := cmd.Flags().GetString("path")
	method, _ := cmd.Flags().GetString("method")
	headers, _ := cmd.Flags().GetStringToString("header")

	snap, err := ingest.LoadDir(cfg.ManifestDir)
	if err != nil {
		return err
	}
	graph, _, err := ir.Compile(snap, nil, nil)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	group, ok := graph.Match(ir.Request{Host: host, Path: path, Method: method, Headers: headers})
	if !ok {
		return fmt.Errorf("no route matches %s %s%s", method, host, path)
	}

	fmt.Printf("Group: %s\n", group.ID)
	fmt.Printf("  Prefix: %s\n", group.Prefix)
	if group.Host != "" {
		fmt.Printf("  Host: %s\n", group.Host)
	}
	if group.Method != "" {
		fmt.Printf("  Method: %s\n", group.Method)
	}
	for _, h := range group.Headers {
		fmt.Printf("  Header: %s=%s\n", h.Name, h.Value)
	}

	fmt.Println("Members:")
	prev := 0
	for _, m := range group.Members {
		fmt.Printf("  %s/%s -> %s (%d%%)\n", m.Namespace, m.Name, m.ClusterName, m.Threshold-prev)
		prev = m.Threshold
	}
	return nil
}
