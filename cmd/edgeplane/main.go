package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/edgeplane/pkg/config"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "edgeplane",
	Short: "edgeplane - incremental control plane for an Envoy edge proxy",
	Long: `edgeplane compiles Mapping, TCPMapping, TLSContext and Module manifests
into Envoy configuration and serves it over ADS.

Unchanged resources are never recompiled: compiled artifacts and rendered
fragments are cached and only what a change touches is rebuilt.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			loaded.Log.Level, _ = flags.GetString("log-level")
		}
		if flags.Changed("log-json") {
			loaded.Log.JSON, _ = flags.GetBool("log-json")
		}
		if flags.Changed("manifests") {
			loaded.ManifestDir, _ = flags.GetString("manifests")
		}
		if flags.Changed("data-dir") {
			loaded.DataDir, _ = flags.GetString("data-dir")
		}
		if flags.Changed("no-cache") {
			noCache, _ := flags.GetBool("no-cache")
			loaded.CacheEnabled = !noCache
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		log.Init(loaded.LogOptions())
		metrics.SetVersion(Version)
		cfg = loaded
		return nil
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"edgeplane version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Path to the YAML configuration file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Output logs in JSON format")
	pf.StringP("manifests", "m", "", "Manifest directory (overrides manifest_dir)")
	pf.String("data-dir", "", "Data directory for build history (overrides data_dir)")
	pf.Bool("no-cache", false, "Disable incremental builds")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edgeplane version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
