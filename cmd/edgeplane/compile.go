package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/reconciler"
	"github.com/cuemby/edgeplane/pkg/types"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the manifest directory once",
	Long: `Compile the manifest directory and print the resource errors.

Examples:
  # Write bootstrap.json and config.json to ./out
  edgeplane compile -m ./manifests --out ./out

  # Check that incremental builds match a full rebuild
  edgeplane compile -m ./manifests --verify-cache`,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().String("out", "", "Directory to write bootstrap.json, config.json and ir.json to")
	compileCmd.Flags().Bool("verify-cache", false, "Build incrementally resource by resource and compare with a full build")
}

func runCompile(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	verify, _ := cmd.Flags().GetBool("verify-cache")

	snap, err := ingest.LoadDir(cfg.ManifestDir)
	if err != nil {
		return err
	}

	p := reconciler.NewPipeline(reconciler.PipelineConfig{CacheEnabled: cfg.CacheEnabled, Render: cfg.RenderOptions()})
	b, err := p.Build(snap, ingest.Diff(nil, snap))
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("Compiled %d resources: %d mappings, %d tcp mappings, %d clusters, %d groups\n",
		snap.Len(), len(b.Graph.Mappings), len(b.Graph.TCPMappings), len(b.Graph.Clusters), len(b.Graph.Groups))
	for _, e := range b.Graph.Errors {
		fmt.Printf("  error: %s\n", e.Error())
	}

	if verify {
		if err := verifyCache(snap, b); err != nil {
			return err
		}
		fmt.Println("✓ Incremental builds match the full build")
	}

	if out != "" {
		if err := writeOutputs(out, b); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote configuration to %s\n", out)
	}
	return nil
}

// verifyCache grows a snapshot one resource at a time through a cached
// pipeline, then repeats the walk with each resource edited away and
// back, comparing every step with an uncached build
func verifyCache(snap *types.Snapshot, full *reconciler.Build) error {
	cached := reconciler.NewPipeline(reconciler.PipelineConfig{CacheEnabled: true, Render: cfg.RenderOptions()})
	fresh := reconciler.NewPipeline(reconciler.PipelineConfig{CacheEnabled: false, Render: cfg.RenderOptions()})

	var steps []*types.Snapshot
	cur := types.NewSnapshot()
	for _, r := range snap.Resources() {
		cur = cur.Clone()
		cur.Upsert(r)
		steps = append(steps, cur)
	}
	for _, id := range snap.Identities() {
		without := snap.Clone()
		without.Delete(id)
		steps = append(steps, without, snap)
	}

	var prev *types.Snapshot
	for i, step := range steps {
		got, err := cached.Build(step, ingest.Diff(prev, step))
		if err != nil {
			return fmt.Errorf("step %d: cached build failed: %w", i, err)
		}
		want, err := fresh.Build(step, nil)
		if err != nil {
			return fmt.Errorf("step %d: full build failed: %w", i, err)
		}
		if !got.Config.Equal(want.Config) {
			return fmt.Errorf("step %d: incremental output differs from a full build", i)
		}
		prev = step
	}

	if prev != nil && !cached.Latest().Config.Equal(full.Config) {
		return fmt.Errorf("final incremental output differs from a full build")
	}
	return nil
}

func writeOutputs(dir string, b *reconciler.Build) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	bootstrap, err := b.Config.BootstrapJSON()
	if err != nil {
		return err
	}
	dynamic, err := b.Config.DynamicJSON()
	if err != nil {
		return err
	}
	graph, err := b.Graph.JSON()
	if err != nil {
		return err
	}

	for name, data := range map[string][]byte{
		"bootstrap.json": bootstrap,
		"config.json":    dynamic,
		"ir.json":        graph,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
